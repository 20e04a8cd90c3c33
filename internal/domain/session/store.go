package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/webdriverify/internal/shared/id"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

// DefaultOutboxSize bounds the commands buffered for a browser that is not polling
const DefaultOutboxSize = 16

// Store holds live sessions keyed by ID
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	outboxSize int
	onClose    []func(*Session)
}

// NewStore creates an empty store
func NewStore(outboxSize int) *Store {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Store{
		sessions:   make(map[string]*Session),
		outboxSize: outboxSize,
	}
}

// OnClose registers a callback run after a session is destroyed
func (st *Store) OnClose(fn func(*Session)) {
	st.mu.Lock()
	st.onClose = append(st.onClose, fn)
	st.mu.Unlock()
}

// Create starts a new session with a fresh ID
func (st *Store) Create(caps types.Capabilities) *Session {
	return st.CreateWithID(id.NewSessionID().String(), caps)
}

// CreateWithID starts a session under a caller-chosen ID, replacing any
// session already registered under it
func (st *Store) CreateWithID(sid string, caps types.Capabilities) *Session {
	sess := newSession(sid, caps, st.outboxSize)

	st.mu.Lock()
	old := st.sessions[sid]
	st.sessions[sid] = sess
	st.mu.Unlock()

	if old != nil {
		st.finish(old)
	}
	return sess
}

// Get looks up a session
func (st *Store) Get(sid string) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[sid]
	st.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	return sess, nil
}

// Touch looks up a session and marks it as seen
func (st *Store) Touch(sid string) (*Session, error) {
	sess, err := st.Get(sid)
	if err != nil {
		return nil, err
	}
	sess.touch(time.Now())
	return sess, nil
}

// Destroy removes a session and releases anything waiting on it
func (st *Store) Destroy(sid string) error {
	st.mu.Lock()
	sess, ok := st.sessions[sid]
	delete(st.sessions, sid)
	st.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	st.finish(sess)
	return nil
}

// Reap destroys sessions idle for longer than maxIdle and returns their IDs
func (st *Store) Reap(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	var expired []*Session
	st.mu.Lock()
	for sid, sess := range st.sessions {
		if sess.LastSeen().Before(cutoff) {
			expired = append(expired, sess)
			delete(st.sessions, sid)
		}
	}
	st.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		st.finish(sess)
		ids = append(ids, sess.ID)
	}
	sort.Strings(ids)
	return ids
}

// List returns all live sessions ordered by creation time
func (st *Store) List() []*Session {
	st.mu.RLock()
	out := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		out = append(out, sess)
	}
	st.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close destroys every session
func (st *Store) Close() {
	st.mu.Lock()
	all := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, sess := range all {
		st.finish(sess)
	}
}

func (st *Store) finish(sess *Session) {
	sess.close()

	st.mu.RLock()
	hooks := append([]func(*Session){}, st.onClose...)
	st.mu.RUnlock()

	for _, fn := range hooks {
		fn(sess)
	}
}
