package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("connection refused")

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(s Settings) (*Breaker, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	b := New("origin.test", s)
	b.now = c.now
	b.deadline = c.now().Add(b.settings.Window)
	return b, c
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerTrips(t *testing.T) {
	b, _ := newTestBreaker(Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 }})

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute(fail), errUpstream)
	}
	assert.Equal(t, StateClosed, b.State())

	require.NoError(t, b.Execute(succeed))
	for i := 0; i < 2; i++ {
		_ = b.Execute(fail)
	}
	assert.Equal(t, StateClosed, b.State(), "a success resets the streak")

	_ = b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(succeed), ErrOpen)
}

func TestBreakerCounts(t *testing.T) {
	b, _ := newTestBreaker(Settings{})

	require.NoError(t, b.Execute(succeed))
	_ = b.Execute(fail)

	counts := b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.Successes)
	assert.Equal(t, uint32(1), counts.Failures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerWindowRollover(t *testing.T) {
	b, clk := newTestBreaker(Settings{
		Window: time.Minute,
		Trip:   func(c Counts) bool { return c.Failures >= 2 },
	})

	_ = b.Execute(fail)
	clk.advance(2 * time.Minute)
	_ = b.Execute(fail)

	assert.Equal(t, StateClosed, b.State(), "failures in different windows do not add up")
	assert.Equal(t, uint32(1), b.Counts().Failures)
}

func TestBreakerHalfOpen(t *testing.T) {
	var transitions []string
	b, clk := newTestBreaker(Settings{
		Trials:   2,
		Cooldown: 10 * time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Execute(fail)
	require.Equal(t, StateOpen, b.State())

	clk.advance(11 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	first, err := b.Allow()
	require.NoError(t, err)
	second, err := b.Allow()
	require.NoError(t, err)
	_, err = b.Allow()
	assert.ErrorIs(t, err, ErrTooManyRequests)

	first(true)
	assert.Equal(t, StateHalfOpen, b.State())
	second(true)
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return true },
	})

	_ = b.Execute(fail)
	clk.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	_ = b.Execute(fail)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresStaleReports(t *testing.T) {
	b, _ := newTestBreaker(Settings{Trip: func(c Counts) bool { return true }})

	slow, err := b.Allow()
	require.NoError(t, err)

	_ = b.Execute(fail)
	require.Equal(t, StateOpen, b.State())

	slow(true)
	slow(true)
	assert.Equal(t, StateOpen, b.State(), "a result from before the trip must not close the breaker")
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{})

	assert.Panics(t, func() {
		_ = b.Execute(func() error { panic("boom") })
	})
	assert.Equal(t, uint32(1), b.Counts().Failures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
