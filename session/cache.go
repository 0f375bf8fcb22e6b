package session

import (
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// credentialCache holds at most one decrypted password, kept in a memguard
// enclave and cleared automatically after the TTL. Each Set replaces the
// watched value and schedules its own expiry check; the check clears the slot
// only if no newer Set intervened, so a fresh password is never expired by a
// stale timer. Reads never renew the TTL.
type credentialCache struct {
	mu   sync.Mutex
	slot *memguard.Enclave
	gen  uint64
	ttl  time.Duration
}

func newCredentialCache(ttl time.Duration) *credentialCache {
	return &credentialCache{ttl: ttl}
}

// Set replaces the cached password and schedules its expiry.
func (c *credentialCache) Set(password string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.slot = memguard.NewEnclave([]byte(password))
	c.mu.Unlock()

	time.AfterFunc(c.ttl, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			// A newer Set replaced the watched value.
			return
		}
		c.slot = nil
	})
}

// Get returns the cached password, if one is still live.
func (c *credentialCache) Get() (string, bool) {
	c.mu.Lock()
	slot := c.slot
	c.mu.Unlock()
	if slot == nil {
		return "", false
	}
	buf, err := slot.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	// string conversion copies out of the locked buffer before Destroy wipes it
	return string(buf.Bytes()), true
}

// Clear empties the slot immediately. Any pending expiry check becomes a no-op.
func (c *credentialCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.slot = nil
}
