package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/endpoint"
	"github.com/GriffinCanCode/webdriverify/internal/endpoints"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
)

// URLPlaceholder in an argument is replaced by the init page URL. Without
// one the URL is appended as the last argument.
const URLPlaceholder = "{url}"

var (
	ErrDisabled = errors.New("launcher: no browser command configured")
	ErrClosed   = errors.New("launcher: closed")
)

// Config configures the launcher
type Config struct {
	Command string
	Args    []string
	// Base is the absolute URL of the prefix group the init page lives under
	Base string
}

type process struct {
	cmd  *exec.Cmd
	tty  *os.File
	done chan struct{}
}

// Launcher owns the browser processes it started
type Launcher struct {
	cfg    Config
	logger *logging.Logger

	mu     sync.Mutex
	procs  map[string]*process
	closed bool
	wg     sync.WaitGroup
}

// New creates a launcher
func New(cfg Config, logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Launcher{
		cfg:    cfg,
		logger: logger.Named("launcher"),
		procs:  make(map[string]*process),
	}
}

// Enabled reports whether a browser command is configured
func (l *Launcher) Enabled() bool {
	return l.cfg.Command != ""
}

// Attach subscribes the launcher to created events and returns the
// unsubscribe function
func (l *Launcher) Attach(events *endpoint.Notifier) func() {
	return events.Subscribe(func(e endpoint.Endpoint) {
		creator, ok := e.(endpoints.SessionCreator)
		if !ok {
			return
		}
		if err := l.Launch(e.ID(), creator.SessionID()); err != nil && !errors.Is(err, ErrDisabled) {
			l.logger.Error("browser launch failed",
				zap.String("cmd", e.ID()),
				zap.String("sid", creator.SessionID()),
				zap.Error(err))
		}
	})
}

// InitURL is the first page a launched browser opens
func (l *Launcher) InitURL(cmdID, sid string) string {
	q := url.Values{}
	q.Set("cmd", cmdID)
	q.Set("sid", sid)
	return strings.TrimRight(l.cfg.Base, "/") + "/wd?" + q.Encode()
}

func (l *Launcher) args(initURL string) []string {
	args := make([]string, 0, len(l.cfg.Args)+1)
	substituted := false
	for _, a := range l.cfg.Args {
		if strings.Contains(a, URLPlaceholder) {
			a = strings.ReplaceAll(a, URLPlaceholder, initURL)
			substituted = true
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, initURL)
	}
	return args
}

// Launch starts the browser for a session
func (l *Launcher) Launch(cmdID, sid string) error {
	if !l.Enabled() {
		return ErrDisabled
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	if _, running := l.procs[sid]; running {
		return fmt.Errorf("launcher: browser already running for session %s", sid)
	}

	initURL := l.InitURL(cmdID, sid)
	cmd := exec.Command(l.cfg.Command, l.args(initURL)...)
	tty, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("starting %s: %w", l.cfg.Command, err)
	}

	p := &process{cmd: cmd, tty: tty, done: make(chan struct{})}
	l.procs[sid] = p

	log := l.logger.With(zap.String("sid", sid), zap.Int("pid", cmd.Process.Pid))
	log.Info("browser started", zap.String("command", l.cfg.Command), zap.String("url", initURL))

	l.wg.Add(2)
	go l.stream(p, log)
	go l.wait(sid, p, log)
	return nil
}

func (l *Launcher) stream(p *process, log *logging.Logger) {
	defer l.wg.Done()
	defer p.tty.Close()
	scanner := bufio.NewScanner(p.tty)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			log.Debug("browser output", zap.String("line", line))
		}
	}
}

func (l *Launcher) wait(sid string, p *process, log *logging.Logger) {
	defer l.wg.Done()
	err := p.cmd.Wait()
	close(p.done)

	l.mu.Lock()
	if l.procs[sid] == p {
		delete(l.procs, sid)
	}
	l.mu.Unlock()

	if err != nil {
		log.Info("browser exited", zap.Error(err))
	} else {
		log.Info("browser exited")
	}
}

// Stop kills the browser of a session, if one is running
func (l *Launcher) Stop(sid string) {
	l.mu.Lock()
	p, ok := l.procs[sid]
	l.mu.Unlock()
	if ok {
		l.kill(p)
	}
}

// kill signals the whole process group; pty.Start puts the browser in a
// new session, so helpers it forked die with it.
func (l *Launcher) kill(p *process) {
	select {
	case <-p.done:
	default:
		_ = syscall.Kill(-p.cmd.Process.Pid, syscall.SIGKILL)
	}
	<-p.done
	p.tty.Close()
}

// Running returns the IDs of sessions with a live browser
func (l *Launcher) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.procs))
	for sid := range l.procs {
		out = append(out, sid)
	}
	return out
}

// Close kills every browser and waits for their output to drain
func (l *Launcher) Close() {
	l.mu.Lock()
	l.closed = true
	procs := make([]*process, 0, len(l.procs))
	for _, p := range l.procs {
		procs = append(procs, p)
	}
	l.mu.Unlock()

	for _, p := range procs {
		l.kill(p)
	}
	l.wg.Wait()
}
