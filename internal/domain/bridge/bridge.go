package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

var (
	ErrTimeout       = errors.New("timed out waiting for the browser")
	ErrSessionClosed = errors.New("session closed before the browser replied")
	ErrCallInFlight  = errors.New("command already awaiting the browser")
	ErrNoPendingCall = errors.New("no pending call for reply")
	ErrScript        = errors.New("javascript error")
)

// Config controls call and poll deadlines
type Config struct {
	// Timeout bounds Send; zero waits until the session ends
	Timeout time.Duration
	// PollWait bounds one long-poll request from the browser
	PollWait time.Duration
}

// DefaultConfig returns the production deadlines
func DefaultConfig() Config {
	return Config{
		Timeout:  30 * time.Second,
		PollWait: 25 * time.Second,
	}
}

type call struct {
	cmd       types.Command
	reply     chan types.Reply
	queued    bool
	delivered bool
}

// Bridge tracks calls awaiting a browser reply
type Bridge struct {
	mu    sync.Mutex
	calls map[string]*call
	// abandoned holds commands whose call ended before the browser pulled
	// them; Next drops them from the outbox
	abandoned map[string]struct{}
	cfg       Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a bridge
func New(cfg Config, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bridge{
		calls:     make(map[string]*call),
		abandoned: make(map[string]struct{}),
		cfg:       cfg,
		logger:    logger.Named("bridge"),
	}
}

// WithMetrics attaches a metrics collector
func (b *Bridge) WithMetrics(m *monitoring.Metrics) *Bridge {
	b.metrics = m
	return b
}

// Config returns the deadlines in effect
func (b *Bridge) Config() Config {
	return b.cfg
}

func callKey(sid, name string) string {
	return sid + "/" + name
}

func cmdKey(sid, id string) string {
	return sid + "#" + id
}

// Send delivers cmd to the browser and waits for its reply
func (b *Bridge) Send(ctx context.Context, sess *session.Session, cmd types.Command) (types.Reply, error) {
	var timer *monitoring.Timer
	if b.metrics != nil {
		timer = monitoring.NewTimer(b.metrics, cmd.Name)
	}

	k := callKey(sess.ID, cmd.Name)
	c := &call{cmd: cmd, reply: make(chan types.Reply, 1)}

	b.mu.Lock()
	if existing, busy := b.calls[k]; busy {
		b.mu.Unlock()
		timer.Stop("busy")
		return types.Reply{}, fmt.Errorf("%w: %s (%s)", ErrCallInFlight, cmd.Name, existing.cmd.ID)
	}
	b.calls[k] = c
	b.mu.Unlock()
	defer b.forget(sess.ID, k, c)

	if err := sess.Enqueue(cmd); err != nil {
		timer.Stop("undeliverable")
		if errors.Is(err, session.ErrClosed) {
			return types.Reply{}, fmt.Errorf("%w: %s", ErrSessionClosed, sess.ID)
		}
		return types.Reply{}, err
	}
	b.mu.Lock()
	c.queued = true
	b.mu.Unlock()

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	b.logger.Debug("command sent to browser",
		zap.String("session", sess.ID),
		zap.String("command", cmd.Name),
		zap.String("cmd_id", cmd.ID),
	)

	select {
	case reply := <-c.reply:
		if reply.Failed() {
			timer.Stop("script_error")
			return reply, fmt.Errorf("%w: %s", ErrScript, reply.Error)
		}
		timer.Stop("ok")
		return reply, nil
	case <-sess.Done():
		timer.Stop("session_closed")
		return types.Reply{}, fmt.Errorf("%w: %s", ErrSessionClosed, sess.ID)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			timer.Stop("timeout")
			return types.Reply{}, fmt.Errorf("%w: %s after %s", ErrTimeout, cmd.Name, b.cfg.Timeout)
		}
		timer.Stop("cancelled")
		return types.Reply{}, ctx.Err()
	}
}

// Push delivers cmd without waiting for a reply, for commands whose effect
// unloads the page that would have answered
func (b *Bridge) Push(sess *session.Session, cmd types.Command) error {
	if err := sess.Enqueue(cmd); err != nil {
		if b.metrics != nil {
			b.metrics.RecordBridgeCall(cmd.Name, "undeliverable", 0)
		}
		if errors.Is(err, session.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrSessionClosed, sess.ID)
		}
		return err
	}
	if b.metrics != nil {
		b.metrics.RecordBridgeCall(cmd.Name, "pushed", 0)
	}
	b.logger.Debug("command pushed to browser",
		zap.String("session", sess.ID),
		zap.String("command", cmd.Name),
		zap.String("cmd_id", cmd.ID),
	)
	return nil
}

// Next blocks until a command is ready for the browser, the session ends, or
// ctx is done. Commands whose Send already gave up are skipped.
func (b *Bridge) Next(ctx context.Context, sess *session.Session) (types.Command, error) {
	for {
		select {
		case cmd := <-sess.Outbox():
			if b.claim(sess.ID, cmd) {
				return cmd, nil
			}
			b.logger.Debug("dropped abandoned command",
				zap.String("session", sess.ID),
				zap.String("command", cmd.Name),
				zap.String("cmd_id", cmd.ID),
			)
		case <-sess.Done():
			return types.Command{}, fmt.Errorf("%w: %s", ErrSessionClosed, sess.ID)
		case <-ctx.Done():
			return types.Command{}, ctx.Err()
		}
	}
}

// claim marks cmd as handed to the browser, or reports false when its call
// was abandoned while it sat in the outbox
func (b *Bridge) claim(sid string, cmd types.Command) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ck := cmdKey(sid, cmd.ID)
	if _, gone := b.abandoned[ck]; gone {
		delete(b.abandoned, ck)
		return false
	}
	if c, ok := b.calls[callKey(sid, cmd.Name)]; ok && c.cmd.ID == cmd.ID {
		c.delivered = true
	}
	return true
}

// Resolve hands a browser reply to the waiting Send. A reply naming a
// different command ID than the pending call is rejected.
func (b *Bridge) Resolve(sess *session.Session, reply types.Reply) error {
	k := callKey(sess.ID, reply.Command.Name)

	b.mu.Lock()
	c, ok := b.calls[k]
	if ok && reply.Command.ID != "" && reply.Command.ID != c.cmd.ID {
		ok = false
	}
	if ok {
		delete(b.calls, k)
	}
	b.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s (%s)", ErrNoPendingCall, reply.Command.Name, reply.Command.ID)
	}
	c.reply <- reply
	return nil
}

// Release drops every pending call of a destroyed session
func (b *Bridge) Release(sess *session.Session) {
	prefix := sess.ID + "/"

	b.mu.Lock()
	var dropped int
	for k := range b.calls {
		if strings.HasPrefix(k, prefix) {
			delete(b.calls, k)
			dropped++
		}
	}
	for k := range b.abandoned {
		if strings.HasPrefix(k, sess.ID+"#") {
			delete(b.abandoned, k)
		}
	}
	b.mu.Unlock()

	if dropped > 0 {
		b.logger.Debug("released pending calls",
			zap.String("session", sess.ID),
			zap.Int("count", dropped),
		)
	}
}

// Pending lists commands awaiting a reply for a session
func (b *Bridge) Pending(sid string) []types.Command {
	prefix := sid + "/"

	b.mu.Lock()
	var out []types.Command
	for k, c := range b.calls {
		if strings.HasPrefix(k, prefix) {
			out = append(out, c.cmd)
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// forget drops an unanswered call. A command the browser never pulled is
// marked abandoned so it is not run after its caller gave up.
func (b *Bridge) forget(sid, k string, c *call) {
	b.mu.Lock()
	if b.calls[k] == c {
		delete(b.calls, k)
		if c.queued && !c.delivered {
			b.abandoned[cmdKey(sid, c.cmd.ID)] = struct{}{}
		}
	}
	b.mu.Unlock()
}
