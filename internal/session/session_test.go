package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGetSetVar(t *testing.T) {
	store := New(50*time.Millisecond, 0, nil)
	defer store.Close()

	sess := store.Create()
	require.NotEmpty(t, sess.ID)

	sess.Set("referrer", "/admin/")
	got, ok := store.Get(sess.ID)
	require.True(t, ok)
	v, ok := got.Get("referrer")
	require.True(t, ok)
	assert.Equal(t, "/admin/", v)
}

func TestIdleEvictionOnAccess(t *testing.T) {
	store := New(10*time.Millisecond, 0, nil)
	defer store.Close()

	sess := store.Create()
	time.Sleep(30 * time.Millisecond)

	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestAccessRefreshesExpiry(t *testing.T) {
	store := New(30*time.Millisecond, 0, nil)
	defer store.Close()

	sess := store.Create()
	time.Sleep(20 * time.Millisecond)
	_, ok := store.Get(sess.ID)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = store.Get(sess.ID)
	assert.True(t, ok, "access should have refreshed the idle timer")
}

func TestSweepEvictsExpiredSessions(t *testing.T) {
	store := New(5*time.Millisecond, 10*time.Millisecond, nil)
	defer store.Close()

	store.Create()
	store.Create()
	assert.Equal(t, 2, store.Len())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, store.Len())
}

func TestDestroyRemovesSession(t *testing.T) {
	store := New(time.Minute, 0, nil)
	defer store.Close()

	sess := store.Create()
	store.Destroy(sess.ID)
	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestSessionIDsAreUnique(t *testing.T) {
	store := New(time.Minute, 0, nil)
	defer store.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := store.Create().ID
		require.False(t, seen[id])
		seen[id] = true
	}
}
