package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/webdriverify/internal/client"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

func newSessionCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create or delete sessions",
	}

	var caps []string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Open a session and print its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := parseCaps(caps)
			if err != nil {
				return err
			}
			sid, err := g.client(cmd).NewSession(cmd.Context(), desired)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sid)
			return nil
		},
	}
	newCmd.Flags().StringArrayVarP(&caps, "capability", "c", nil, "desired capability as key=value (repeatable)")

	deleteCmd := &cobra.Command{
		Use:   "delete [session-id]",
		Short: "End a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				g.session = args[0]
			}
			sid, err := g.sid()
			if err != nil {
				return err
			}
			return g.client(cmd).DeleteSession(cmd.Context(), sid)
		},
	}

	cmd.AddCommand(newCmd, deleteCmd)
	return cmd
}

type navigateFunc func(c *client.Client, ctx context.Context, sid string) (*types.Payload, error)

func newNavigationCommand(g *globals, use, short string, navigate navigateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := g.sid()
			if err != nil {
				return err
			}
			_, err = navigate(g.client(cmd), cmd.Context(), sid)
			return err
		},
	}
}

func newURLCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "url <address>",
		Short: "Navigate to an absolute URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := g.sid()
			if err != nil {
				return err
			}
			_, err = g.client(cmd).Navigate(cmd.Context(), sid, args[0])
			return err
		},
	}
}

func newTitleCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "title",
		Short: "Print the document title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := g.sid()
			if err != nil {
				return err
			}
			title, err := g.client(cmd).Title(cmd.Context(), sid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
			return nil
		},
	}
}

func newScreenshotCommand(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "screenshot",
		Short: "Save a screenshot of the page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := g.sid()
			if err != nil {
				return err
			}
			img, err := g.client(cmd).Screenshot(cmd.Context(), sid)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, img, 0o644); err != nil {
				return fmt.Errorf("writing screenshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(img), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "screenshot.png", "output file")
	return cmd
}

func newExecuteCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <script>",
		Short: "Run a script in the page and print its result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := g.sid()
			if err != nil {
				return err
			}
			v, err := g.client(cmd).Execute(cmd.Context(), sid, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		},
	}
}

func newStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the proxy status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := g.client(cmd).Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
}
