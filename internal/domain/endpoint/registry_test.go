package endpoint

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webdriverify/internal/domain/session"
	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

type Forward struct {
	Base
}

func (f *Forward) Bind(r Router) {
	r.POST("/session/:sid/forward", func(req *Request) error {
		req.Next()
		return nil
	})
}

func (f *Forward) Transform(data types.Payload, sess *session.Session) types.Payload {
	sess.Clear()
	return data
}

type Title struct {
	Base
}

func newForward() Endpoint { return &Forward{} }
func newTitle() Endpoint   { return &Title{} }

func TestRegisterDerivesName(t *testing.T) {
	reg := NewRegistry(nil)

	d, err := reg.Register(newForward)
	require.NoError(t, err)
	assert.Equal(t, "Forward", d.Name())

	got, err := reg.Resolve("Forward")
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Register(newForward)
	require.NoError(t, err)

	_, err = reg.Register(func() Endpoint { return &Forward{} })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateRegistration))
	assert.Contains(t, err.Error(), "Forward")

	assert.Panics(t, func() { reg.MustRegister(newForward) })
}

func TestRegisterDistinctNamesResolveIndependently(t *testing.T) {
	reg := NewRegistry(nil)
	reg.MustRegister(newForward)
	reg.MustRegister(newTitle)

	fwd, err := reg.Resolve("Forward")
	require.NoError(t, err)
	title, err := reg.Resolve("Title")
	require.NoError(t, err)

	assert.NotSame(t, fwd, title)
	assert.IsType(t, &Forward{}, fwd.Instantiate())
	assert.IsType(t, &Title{}, title.Instantiate())

	names := []string{}
	for _, d := range reg.Descriptors() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"Forward", "Title"}, names)
}

func TestResolveNotFound(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Resolve("teleport")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterInvalid(t *testing.T) {
	reg := NewRegistry(nil)

	_, err := reg.Register(nil)
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = reg.Register(func() Endpoint { return nil })
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	_, err = reg.Register(func() Endpoint { var f *Forward; return f })
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestSeal(t *testing.T) {
	reg := NewRegistry(nil)
	reg.MustRegister(newForward)
	reg.Seal()

	_, err := reg.Register(newTitle)
	assert.ErrorIs(t, err, ErrRegistrySealed)

	_, err = reg.Resolve("Forward")
	assert.NoError(t, err, "sealed registry still resolves")
	assert.Equal(t, true, reg.Stats()["sealed"])
}

func TestInstantiateFreshIdentity(t *testing.T) {
	reg := NewRegistry(nil)
	d := reg.MustRegister(newForward)

	a := d.Instantiate()
	b := d.Instantiate()

	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.True(t, strings.HasPrefix(a.ID(), "cmd_"))
	assert.Equal(t, types.Command{ID: a.ID(), Name: "Forward"}, a.DTO())
}

func TestCapabilities(t *testing.T) {
	reg := NewRegistry(nil)
	fwd := reg.MustRegister(newForward)
	title := reg.MustRegister(newTitle)

	assert.ElementsMatch(t, []string{"dto", "routes", "transform"}, fwd.Capabilities())
	assert.Equal(t, []string{"dto"}, title.Capabilities())

	_, ok := fwd.Binder()
	assert.True(t, ok)
	_, ok = title.Binder()
	assert.False(t, ok)
}

func TestCreatedFiresPerInstanceNotOnRegistration(t *testing.T) {
	events := NewNotifier(nil)
	reg := NewRegistry(events)

	var count int32
	got := make(chan Endpoint, 4)
	events.Subscribe(func(e Endpoint) {
		atomic.AddInt32(&count, 1)
		got <- e
	})

	d := reg.MustRegister(newForward)
	events.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&count), "registration must not emit")

	e := d.Instantiate()
	select {
	case seen := <-got:
		assert.Same(t, e, seen)
	case <-time.After(time.Second):
		t.Fatal("created event not delivered")
	}

	events.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}
