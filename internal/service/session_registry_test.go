package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	r := NewSessionRegistry(time.Hour, time.Minute, nil)

	session := r.Create("admin-1")
	require.NotEmpty(t, session.ID)
	assert.True(t, r.Validate(session.ID, "admin-1"))

	assert.True(t, r.Revoke(session.ID))
	assert.False(t, r.Validate(session.ID, "admin-1"))
	assert.False(t, r.Revoke(session.ID))
}

func TestSessionRegistryRejectsWrongUser(t *testing.T) {
	r := NewSessionRegistry(time.Hour, time.Minute, nil)
	session := r.Create("admin-1")

	// A session id presented with another user's identity is invalid.
	assert.False(t, r.Validate(session.ID, "admin-2"))
	// The session itself stays live for its real owner.
	assert.True(t, r.Validate(session.ID, "admin-1"))
}

func TestSessionRegistryRevokeUser(t *testing.T) {
	r := NewSessionRegistry(time.Hour, time.Minute, nil)

	a := r.Create("admin-1")
	b := r.Create("admin-1")
	c := r.Create("admin-2")

	assert.Equal(t, 2, r.RevokeUser("admin-1"))
	assert.False(t, r.Validate(a.ID, "admin-1"))
	assert.False(t, r.Validate(b.ID, "admin-1"))
	assert.True(t, r.Validate(c.ID, "admin-2"))
	assert.Zero(t, r.RevokeUser("admin-1"))
}

func TestSessionRegistryIdleExpiry(t *testing.T) {
	r := NewSessionRegistry(time.Hour, time.Minute, nil)
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	session := r.Create("admin-1")

	// Activity inside the window keeps the session alive and resets the clock.
	clock = clock.Add(50 * time.Minute)
	require.True(t, r.Validate(session.ID, "admin-1"))

	clock = clock.Add(50 * time.Minute)
	require.True(t, r.Validate(session.ID, "admin-1"))

	// Idle past the timeout kills it, even before the sweeper runs.
	clock = clock.Add(61 * time.Minute)
	assert.False(t, r.Validate(session.ID, "admin-1"))
}

func TestSessionRegistrySweep(t *testing.T) {
	r := NewSessionRegistry(time.Hour, time.Minute, nil)
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	stale := r.Create("admin-1")
	clock = clock.Add(2 * time.Hour)
	fresh := r.Create("admin-2")

	r.sweep()

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, fresh.ID, active[0].ID)
	assert.NotEqual(t, stale.ID, active[0].ID)
}
