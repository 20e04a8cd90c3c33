package endpoint

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webdriverify/internal/infrastructure/logging"
)

// Listener observes newly created endpoint instances
type Listener func(Endpoint)

// Notifier is the created-event topic. Delivery is fire-and-forget: every
// listener runs on its own goroutine and a panicking listener is logged, so
// the dispatch path never waits on or fails because of a subscriber.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
	inflight  sync.WaitGroup
	closed    bool
	logger    *logging.Logger
}

// NewNotifier creates an empty topic
func NewNotifier(logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		listeners: make(map[uint64]Listener),
		logger:    logger.Named("events"),
	}
}

// Subscribe registers fn and returns a function that removes it
func (n *Notifier) Subscribe(fn Listener) func() {
	n.mu.Lock()
	n.nextID++
	key := n.nextID
	n.listeners[key] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, key)
			n.mu.Unlock()
		})
	}
}

// Emit delivers e to every current listener. Events emitted after Close are
// dropped.
func (n *Notifier) Emit(e Endpoint) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		n.logger.Debug("created event after close",
			zap.String("command", e.Name()),
			zap.String("id", e.ID()),
		)
		return
	}
	targets := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		targets = append(targets, fn)
	}
	// Add under the lock so Close cannot start waiting in between
	n.inflight.Add(len(targets))
	n.mu.RUnlock()

	for _, fn := range targets {
		go n.deliver(fn, e)
	}
}

func (n *Notifier) deliver(fn Listener, e Endpoint) {
	defer n.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("created listener panicked",
				zap.String("command", e.Name()),
				zap.String("id", e.ID()),
				zap.Any("panic", r),
			)
		}
	}()
	fn(e)
}

// Len returns the number of subscribers
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Wait blocks until every delivery started so far has returned
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

// Close stops accepting events and waits for running deliveries
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.inflight.Wait()
}
