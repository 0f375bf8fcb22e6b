package session

import (
	"log/slog"
	"time"

	"github.com/jmcleod/keywarden/secstore"
)

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets the sink for user-visible notifications.
// If not set, notifications are discarded.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithCertTrustCache sets the externally owned accepted-certificate cache
// cleared on logout and deauthorization.
func WithCertTrustCache(t secstore.CertTrustCache) Option {
	return func(c *Controller) {
		c.trust = t
	}
}

// WithLogger sets the structured logger for protocol events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger.With("component", "session")
	}
}

// WithStatusFunc registers a callback invoked whenever ChallengeAvailable or
// Err changes. The callback runs on the controller's owner goroutine and must
// not block.
func WithStatusFunc(fn func()) Option {
	return func(c *Controller) {
		c.onStatus = fn
	}
}

// WithCacheTTL overrides the credential cache lifetime. Default: 15s.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Controller) {
		c.cacheTTL = ttl
	}
}

// WithKeepaliveInterval overrides the heartbeat interval. Default: 9m.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.keepaliveEvery = d
	}
}

// WithDeauthorizedNoticeDelay overrides the delay before the deauthorization
// notification fires. Default: 1s.
func WithDeauthorizedNoticeDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.deauthNoticeDelay = d
	}
}

// WithRequestTimeout overrides the per-call network timeout. Default: 30s.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.requestTimeout = d
	}
}
