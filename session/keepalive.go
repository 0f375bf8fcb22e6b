package session

import (
	"sync"
	"time"
)

// keepaliveTimer is a single-slot heartbeat timer. Arm replaces any live
// timer, so at most one heartbeat is ever scheduled per controller.
type keepaliveTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// Arm schedules fn after d, cancelling any previously armed timer.
func (k *keepaliveTimer) Arm(d time.Duration, fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timer != nil {
		k.timer.Stop()
	}
	k.timer = time.AfterFunc(d, fn)
}

// Stop cancels the armed timer, if any.
func (k *keepaliveTimer) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
}
