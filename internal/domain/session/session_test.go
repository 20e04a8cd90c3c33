package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webdriverify/internal/shared/types"
)

func confirmation(id, status string) types.Confirmation {
	return types.Confirmation{
		Cmd:  types.Command{ID: id, Name: "Forward"},
		Data: status,
	}
}

func TestStageAndClear(t *testing.T) {
	sess := NewStore(0).Create(nil)
	assert.Equal(t, StateIdle, sess.State())

	owner := &struct{ name string }{"forward"}
	require.NoError(t, sess.Stage(owner, confirmation("cmd_1", "forward complete")))
	assert.Equal(t, StateAwaiting, sess.State())

	conf, gotOwner, ok := sess.Pending()
	require.True(t, ok)
	assert.Same(t, owner, gotOwner)
	assert.Equal(t, "cmd_1", conf.Cmd.ID)
	assert.Equal(t, "forward complete", conf.Data)

	cleared, ok := sess.Clear()
	require.True(t, ok)
	assert.Equal(t, conf, cleared)
	assert.Equal(t, StateIdle, sess.State())

	_, ok = sess.Clear()
	assert.False(t, ok, "second clear must find nothing")
}

func TestStageOverwritesWithViolation(t *testing.T) {
	sess := NewStore(0).Create(nil)

	require.NoError(t, sess.Stage("first", confirmation("cmd_1", "forward complete")))
	err := sess.Stage("second", confirmation("cmd_2", "back complete"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProtocolViolation))

	conf, owner, ok := sess.Pending()
	require.True(t, ok)
	assert.Equal(t, "cmd_2", conf.Cmd.ID, "latest confirmation wins")
	assert.Equal(t, "second", owner)

	_, ok = sess.Clear()
	require.True(t, ok)
	assert.Equal(t, StateIdle, sess.State(), "confirmations never queue")
}

func TestStorage(t *testing.T) {
	sess := NewStore(0).Create(nil)

	sess.Set("url", "http://example.com")
	v, ok := sess.Get("url")
	require.True(t, ok)
	assert.Equal(t, "http://example.com", v)

	sess.Delete("url")
	_, ok = sess.Get("url")
	assert.False(t, ok)
}

func TestEnqueue(t *testing.T) {
	store := NewStore(2)
	sess := store.Create(nil)

	require.NoError(t, sess.Enqueue(types.Command{ID: "cmd_1", Name: "Title"}))
	require.NoError(t, sess.Enqueue(types.Command{ID: "cmd_2", Name: "Title"}))
	assert.ErrorIs(t, sess.Enqueue(types.Command{ID: "cmd_3", Name: "Title"}), ErrOutboxFull)

	got := <-sess.Outbox()
	assert.Equal(t, "cmd_1", got.ID)

	require.NoError(t, store.Destroy(sess.ID))
	assert.ErrorIs(t, sess.Enqueue(types.Command{ID: "cmd_4"}), ErrClosed)
}

func TestStoreLifecycle(t *testing.T) {
	store := NewStore(0)

	var closed []string
	store.OnClose(func(s *Session) { closed = append(closed, s.ID) })

	sess := store.Create(types.Capabilities{"browserName": "phantomjs"})
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "phantomjs", sess.Capabilities["browserName"])

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	require.NoError(t, store.Destroy(sess.ID))
	assert.True(t, sess.Closed())
	assert.Equal(t, []string{sess.ID}, closed)

	select {
	case <-sess.Done():
	default:
		t.Fatal("done channel should be closed")
	}

	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Destroy(sess.ID), ErrNotFound)
}

func TestStoreTouchAndReap(t *testing.T) {
	store := NewStore(0)

	stale := store.Create(nil)
	fresh := store.Create(nil)

	stale.touch(time.Now().Add(-time.Hour))
	_, err := store.Touch(fresh.ID)
	require.NoError(t, err)

	reaped := store.Reap(10 * time.Minute)
	assert.Equal(t, []string{stale.ID}, reaped)
	assert.True(t, stale.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, store.Len())
}

func TestCreateWithIDReplaces(t *testing.T) {
	store := NewStore(0)

	first := store.CreateWithID("fixed", nil)
	second := store.CreateWithID("fixed", nil)

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, 1, store.Len())
}

func TestStoreClose(t *testing.T) {
	store := NewStore(0)
	a := store.Create(nil)
	b := store.Create(nil)

	store.Close()

	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.List())
}
