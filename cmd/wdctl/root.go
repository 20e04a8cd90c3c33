package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/webdriverify/internal/client"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

type globals struct {
	proxy   string
	session string
	timeout time.Duration
}

// client builds a proxy client that reports collected confirmations on the
// command's stderr
func (g *globals) client(cmd *cobra.Command) *client.Client {
	opts := client.DefaultOptions()
	opts.Timeout = g.timeout
	opts.OnConfirm = func(conf types.Confirmation) {
		fmt.Fprintf(cmd.ErrOrStderr(), "confirmed: %s (%s %s)\n", conf.Data, conf.Cmd.Name, conf.Cmd.ID)
	}
	return client.New(g.proxy, opts)
}

func (g *globals) sid() (string, error) {
	if g.session == "" {
		return "", errors.New("no session: pass --session or set WDCTL_SESSION")
	}
	return g.session, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCommand(version string) *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "wdctl",
		Short: "WebDriver client for the web-driverify proxy",
		Long: `wdctl sends WebDriver commands to a web-driverify proxy.

Navigation commands return before the browser finishes loading; their
confirmation is printed to stderr when the next command collects it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.proxy, "proxy", envOr("WDCTL_PROXY", client.DefaultBaseURL), "proxy base URL")
	flags.StringVarP(&g.session, "session", "s", os.Getenv("WDCTL_SESSION"), "session ID")
	flags.DurationVar(&g.timeout, "timeout", time.Minute, "request timeout")

	rootCmd.AddCommand(
		newSessionCommand(g),
		newNavigationCommand(g, "forward", "Go forward in history", (*client.Client).Forward),
		newNavigationCommand(g, "back", "Go back in history", (*client.Client).Back),
		newNavigationCommand(g, "refresh", "Reload the page", (*client.Client).Refresh),
		newURLCommand(g),
		newTitleCommand(g),
		newScreenshotCommand(g),
		newExecuteCommand(g),
		newStatusCommand(g),
	)
	return rootCmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseCaps turns key=value pairs into capabilities. Values true and false
// become booleans.
func parseCaps(pairs []string) (types.Capabilities, error) {
	caps := types.Capabilities{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("capability %q: want key=value", p)
		}
		switch v {
		case "true":
			caps[k] = true
		case "false":
			caps[k] = false
		default:
			caps[k] = v
		}
	}
	return caps, nil
}
