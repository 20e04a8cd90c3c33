package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrOpen            = errors.New("circuit open")
	ErrTooManyRequests = errors.New("too many trial requests")
)

// State is the breaker position
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a breaker. Zero fields take defaults.
type Settings struct {
	// Trials is how many requests a half-open breaker lets through, and how
	// many must succeed to close it again
	Trials uint32
	// Window clears the closed-state counts periodically
	Window time.Duration
	// Cooldown is how long the breaker stays open
	Cooldown time.Duration
	// Trip decides, after a failure, whether to open
	Trip func(c Counts) bool
	// OnChange observes every transition
	OnChange func(name string, from, to State)
}

// DefaultSettings suits an upstream origin: five straight failures open the
// breaker for thirty seconds
func DefaultSettings() Settings {
	return Settings{
		Trials:   1,
		Window:   time.Minute,
		Cooldown: 30 * time.Second,
		Trip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	}
}

// Counts are the outcomes seen in the current window
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) record(success bool) {
	if success {
		c.Successes++
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
		return
	}
	c.Failures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker guards calls to one upstream
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu     sync.Mutex
	state  State
	counts Counts
	// epoch changes on every transition so late results of an older epoch
	// are ignored
	epoch    uint64
	deadline time.Time
}

// New creates a closed breaker
func New(name string, s Settings) *Breaker {
	def := DefaultSettings()
	if s.Trials == 0 {
		s.Trials = def.Trials
	}
	if s.Window == 0 {
		s.Window = def.Window
	}
	if s.Cooldown == 0 {
		s.Cooldown = def.Cooldown
	}
	if s.Trip == nil {
		s.Trip = def.Trip
	}

	b := &Breaker{name: name, settings: s, now: time.Now}
	b.deadline = b.now().Add(s.Window)
	return b
}

// Name returns the guarded upstream's name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current position
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(b.now())
	return b.state
}

// Counts returns a snapshot of the current window
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow admits one call. The caller must report its outcome through done.
func (b *Breaker) Allow() (done func(success bool), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(b.now())
	switch {
	case b.state == StateOpen:
		return nil, ErrOpen
	case b.state == StateHalfOpen && b.counts.Requests >= b.settings.Trials:
		return nil, ErrTooManyRequests
	}

	b.counts.Requests++
	epoch := b.epoch
	var once sync.Once
	return func(success bool) {
		once.Do(func() { b.report(epoch, success) })
	}, nil
}

// Execute runs fn when the breaker admits it
func (b *Breaker) Execute(fn func() error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			done(false)
			panic(r)
		}
	}()

	err = fn()
	done(err == nil)
	return err
}

func (b *Breaker) report(epoch uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.advance(now)
	if epoch != b.epoch {
		return
	}

	b.counts.record(success)
	switch b.state {
	case StateClosed:
		if !success && b.settings.Trip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !success {
			b.transition(StateOpen, now)
		} else if b.counts.ConsecutiveSuccesses >= b.settings.Trials {
			b.transition(StateClosed, now)
		}
	}
}

// advance applies time-driven changes: window rollover and cooldown expiry
func (b *Breaker) advance(now time.Time) {
	switch b.state {
	case StateClosed:
		if now.After(b.deadline) {
			b.counts = Counts{}
			b.epoch++
			b.deadline = now.Add(b.settings.Window)
		}
	case StateOpen:
		if now.After(b.deadline) {
			b.transition(StateHalfOpen, now)
		}
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}
	b.epoch++

	switch to {
	case StateClosed:
		b.deadline = now.Add(b.settings.Window)
	case StateOpen:
		b.deadline = now.Add(b.settings.Cooldown)
	case StateHalfOpen:
		b.deadline = time.Time{}
	}

	if b.settings.OnChange != nil {
		b.settings.OnChange(b.name, from, to)
	}
}
