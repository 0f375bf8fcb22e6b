package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialCache_SetAndGet(t *testing.T) {
	c := newCredentialCache(time.Minute)
	c.Set("pw1")

	pw, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "pw1", pw)
}

func TestCredentialCache_ExpiresAfterTTL(t *testing.T) {
	c := newCredentialCache(30 * time.Millisecond)
	c.Set("pw1")

	_, ok := c.Get()
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := c.Get()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCredentialCache_NewerSetSurvivesOldExpiry(t *testing.T) {
	c := newCredentialCache(60 * time.Millisecond)
	c.Set("pw1")
	time.Sleep(40 * time.Millisecond)
	c.Set("pw2")

	// Past pw1's scheduled expiry: pw2 must not be cleared by it.
	time.Sleep(40 * time.Millisecond)
	pw, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "pw2", pw)

	// pw2 still expires on its own schedule.
	require.Eventually(t, func() bool {
		_, ok := c.Get()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCredentialCache_GetDoesNotRenew(t *testing.T) {
	c := newCredentialCache(50 * time.Millisecond)
	c.Set("pw1")

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, ok := c.Get(); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("repeated Get calls kept the cached password alive past its TTL")
}

func TestCredentialCache_Clear(t *testing.T) {
	c := newCredentialCache(30 * time.Millisecond)
	c.Set("pw1")
	c.Clear()

	_, ok := c.Get()
	assert.False(t, ok)

	// The pending expiry check must not resurrect anything set afterwards.
	c.Set("pw2")
	time.Sleep(10 * time.Millisecond)
	pw, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "pw2", pw)
}
