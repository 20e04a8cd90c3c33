package launcher

import (
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
)

const base = "http://localhost:4444/web-driverify"

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newLauncher(t *testing.T, cfg Config) (*Launcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	cfg.Base = base
	l := New(cfg, logging.Wrap(zap.New(core)))
	t.Cleanup(l.Close)
	return l, logs
}

func outputLines(logs *observer.ObservedLogs) []string {
	var lines []string
	for _, e := range logs.FilterMessage("browser output").All() {
		lines = append(lines, e.ContextMap()["line"].(string))
	}
	return lines
}

func TestInitURL(t *testing.T) {
	l := New(Config{Base: base + "/"}, nil)
	assert.Equal(t, base+"/wd?cmd=cmd_1&sid=s+1", l.InitURL("cmd_1", "s 1"))
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"appended", []string{"--headless"}, []string{"--headless", "U"}},
		{"placeholder", []string{"--app={url}", "--kiosk"}, []string{"--app=U", "--kiosk"}},
		{"none", nil, []string{"U"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(Config{Command: "x", Args: tt.args}, nil)
			assert.Equal(t, tt.want, l.args("U"))
		})
	}
}

func TestLaunchDisabled(t *testing.T) {
	l := New(Config{}, nil)
	assert.False(t, l.Enabled())
	assert.ErrorIs(t, l.Launch("cmd_1", "s1"), ErrDisabled)
}

func TestLaunchStreamsOutput(t *testing.T) {
	requireShell(t)
	l, logs := newLauncher(t, Config{Command: "sh", Args: []string{"-c", "echo opened $0"}})

	require.NoError(t, l.Launch("cmd_1", "s1"))

	want := "opened " + l.InitURL("cmd_1", "s1")
	require.Eventually(t, func() bool {
		for _, line := range outputLines(logs) {
			if line == want {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("browser exited").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, l.Running())
}

func TestStopKillsBrowser(t *testing.T) {
	requireShell(t)
	l, logs := newLauncher(t, Config{Command: "sh", Args: []string{"-c", "sleep 30"}})

	require.NoError(t, l.Launch("cmd_1", "s1"))
	assert.Equal(t, []string{"s1"}, l.Running())
	assert.Error(t, l.Launch("cmd_2", "s1"), "second browser for the same session")

	l.Stop("s1")
	require.Eventually(t, func() bool {
		return len(l.Running()) == 0 && logs.FilterMessage("browser exited").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	l.Stop("s1")
}

func TestCloseRejectsLaunch(t *testing.T) {
	requireShell(t)
	l, _ := newLauncher(t, Config{Command: "sh", Args: []string{"-c", "sleep 30"}})

	require.NoError(t, l.Launch("cmd_1", "s1"))
	l.Close()
	assert.Empty(t, l.Running())
	assert.ErrorIs(t, l.Launch("cmd_2", "s2"), ErrClosed)
}

type opener struct {
	endpoint.Base
	sid string
}

func (o *opener) SessionID() string { return o.sid }

type bystander struct {
	endpoint.Base
}

func TestAttachLaunchesOnSessionCreators(t *testing.T) {
	requireShell(t)
	l, logs := newLauncher(t, Config{Command: "sh", Args: []string{"-c", "echo $0"}})

	events := endpoint.NewNotifier(nil)
	reg := endpoint.NewRegistry(events)
	openers := reg.MustRegister(func() endpoint.Endpoint { return &opener{sid: "fresh"} })
	others := reg.MustRegister(func() endpoint.Endpoint { return &bystander{} })

	detach := l.Attach(events)
	defer detach()

	others.Instantiate()
	e := openers.Instantiate()
	events.Wait()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("browser exited").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	started := logs.FilterMessage("browser started").All()
	require.Len(t, started, 1)
	assert.Equal(t, "fresh", started[0].ContextMap()["sid"])
	assert.True(t, strings.Contains(started[0].ContextMap()["url"].(string), "cmd="+e.ID()))
}
