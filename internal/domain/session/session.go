package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrProtocolViolation = errors.New("confirmation already pending")
	ErrClosed            = errors.New("session closed")
	ErrOutboxFull        = errors.New("session outbox full")
)

// State is the confirmation mailbox state
type State int

const (
	StateIdle State = iota
	StateAwaiting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	default:
		return "unknown"
	}
}

// pending is the Awaiting payload. owner is the endpoint instance that staged
// the confirmation; the dispatcher hands the session back to it to clear.
type pending struct {
	confirmation types.Confirmation
	owner        interface{}
}

// Session holds the mutable state of one automation session
type Session struct {
	ID           string
	CreatedAt    time.Time
	Capabilities types.Capabilities

	mu       sync.Mutex
	lastSeen time.Time
	storage  map[string]interface{}
	pending  *pending
	outbox   chan types.Command
	done     chan struct{}
	closed   bool
}

func newSession(id string, caps types.Capabilities, outboxSize int) *Session {
	now := time.Now()
	if caps == nil {
		caps = types.Capabilities{}
	}
	return &Session{
		ID:           id,
		CreatedAt:    now,
		Capabilities: caps,
		lastSeen:     now,
		storage:      make(map[string]interface{}),
		outbox:       make(chan types.Command, outboxSize),
		done:         make(chan struct{}),
	}
}

// LastSeen returns the time of the last request on this session
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Get reads a storage entry
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.storage[key]
	return v, ok
}

// Set writes a storage entry
func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	s.storage[key] = value
	s.mu.Unlock()
}

// Delete removes a storage entry
func (s *Session) Delete(key string) {
	s.mu.Lock()
	delete(s.storage, key)
	s.mu.Unlock()
}

// State reports whether a confirmation is pending
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return StateIdle
	}
	return StateAwaiting
}

// Stage puts a confirmation into the mailbox. When one is already pending it
// is overwritten and the returned error wraps ErrProtocolViolation.
func (s *Session) Stage(owner interface{}, c types.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.pending
	s.pending = &pending{confirmation: c, owner: owner}
	if prev != nil {
		return fmt.Errorf("%w: %s (%s) replaced by %s",
			ErrProtocolViolation, prev.confirmation.Cmd.Name, prev.confirmation.Cmd.ID, c.Cmd.ID)
	}
	return nil
}

// Pending returns the staged confirmation and its owner
func (s *Session) Pending() (types.Confirmation, interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return types.Confirmation{}, nil, false
	}
	return s.pending.confirmation, s.pending.owner, true
}

// Clear empties the mailbox and returns what was pending
func (s *Session) Clear() (types.Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return types.Confirmation{}, false
	}
	c := s.pending.confirmation
	s.pending = nil
	return c, true
}

// Enqueue places a command on the outbound channel without blocking
func (s *Session) Enqueue(cmd types.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.outbox <- cmd:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Outbox is read by the browser-side transport
func (s *Session) Outbox() <-chan types.Command {
	return s.outbox
}

// Done is closed when the session is destroyed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether the session was destroyed
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
