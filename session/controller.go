package session

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmcleod/keywarden/crypto"
	"github.com/jmcleod/keywarden/secstore"
	"github.com/jmcleod/keywarden/transport"
)

const (
	defaultCacheTTL          = 15 * time.Second
	defaultKeepaliveInterval = 9 * time.Minute
	defaultDeauthNoticeDelay = time.Second
	defaultRequestTimeout    = 30 * time.Second
)

// Controller orchestrates the session lifecycle: it owns the current Session,
// the credential cache, and the keepalive timer, subscribes to the session's
// reactive signals, and exposes the protocol entry points.
//
// All controller state is owned by a single goroutine started by
// NewController. Public methods and asynchronous completions marshal onto it,
// so no field ever needs a lock. In-flight network completions are tagged
// with the session generation and dropped when they arrive for a session
// that has since been torn down.
type Controller struct {
	store    secstore.Store
	client   transport.Client
	notifier Notifier
	trust    secstore.CertTrustCache
	logger   *slog.Logger

	cacheTTL          time.Duration
	keepaliveEvery    time.Duration
	deauthNoticeDelay time.Duration
	requestTimeout    time.Duration

	calls     chan func()
	closed    chan struct{}
	closeOnce sync.Once

	// Owner-goroutine state. Touched only from the run loop.
	session   *Session
	challenge *crypto.Challenge
	cache     *credentialCache
	keepalive *keepaliveTimer
	gen       uint64
	busy      bool

	challengeFlag atomic.Bool
	errFlag       atomic.Bool
	onStatus      func()
}

// NewController creates a Controller and starts its owner goroutine.
// Call Close when done.
func NewController(store secstore.Store, client transport.Client, opts ...Option) *Controller {
	c := &Controller{
		store:             store,
		client:            client,
		notifier:          NopNotifier{},
		trust:             nopTrustCache{},
		cacheTTL:          defaultCacheTTL,
		keepaliveEvery:    defaultKeepaliveInterval,
		deauthNoticeDelay: defaultDeauthNoticeDelay,
		requestTimeout:    defaultRequestTimeout,
		calls:             make(chan func(), 64),
		closed:            make(chan struct{}),
		keepalive:         &keepaliveTimer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "session")
	}
	c.cache = newCredentialCache(c.cacheTTL)
	go c.run()
	return c
}

// Close stops the owner goroutine and cancels the keepalive timer and
// credential cache. It does not tear down the session: persisted credentials
// survive so the session can be restored after a restart.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.keepalive.Stop()
		c.cache.Clear()
	})
}

// ChallengeAvailable reports whether a challenge is waiting for a password.
func (c *Controller) ChallengeAvailable() bool {
	return c.challengeFlag.Load()
}

// Err reports whether the last protocol step failed. The flag is sticky: it
// stays set until the next protocol step explicitly clears it.
func (c *Controller) Err() bool {
	return c.errFlag.Load()
}

// SetSession installs a new session, or tears the current one down when s is
// nil. Installing always runs teardown of any prior session first; teardown
// and assignment are never coalesced. Installing persists the session's
// server, user, and password, and subscribes to its reactive signals.
func (c *Controller) SetSession(s *Session) error {
	return c.call(func() error {
		if c.session != nil {
			c.teardown()
		}
		if s != nil {
			c.setup(s)
		}
		return nil
	})
}

// Session returns the currently installed session, or nil.
func (c *Controller) Session() *Session {
	var s *Session
	_ = c.call(func() error {
		s = c.session
		return nil
	})
	return s
}

// SolveChallenge answers the pending challenge with password, or, when no
// challenge is pending, attempts to decrypt the persisted offline keychain
// with it. With remember set, a successfully used password is persisted as
// the challenge password. Returns ErrNoSession when no session is installed;
// all later outcomes surface through Err, ChallengeAvailable, and the
// Notifier.
func (c *Controller) SolveChallenge(password string, remember bool) error {
	return c.call(func() error {
		if c.session == nil {
			return ErrNoSession
		}
		c.solveChallenge(password, remember)
		return nil
	})
}

// Logout sends a best-effort close-session call and invalidates the session
// with ReasonLogout. Calling Logout without a session is a no-op.
func (c *Controller) Logout() error {
	return c.call(func() error {
		if c.session == nil {
			return nil
		}
		ep := c.endpoint()
		go c.closeRemote(ep)
		c.session.Invalidate(ReasonLogout)
		c.handleInvalidation(ReasonLogout)
		return nil
	})
}

// RestoreSession rebuilds a session from the persisted server, user, and
// password and installs it. Returns ErrNoStoredCredentials when the triple is
// incomplete.
func (c *Controller) RestoreSession() (*Session, error) {
	server, okServer, err := c.store.Load(secstore.KeyServer)
	if err != nil {
		return nil, fmt.Errorf("loading stored server: %w", err)
	}
	user, okUser, err := c.store.Load(secstore.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("loading stored user: %w", err)
	}
	password, okPassword, err := c.store.Load(secstore.KeyPassword)
	if err != nil {
		return nil, fmt.Errorf("loading stored password: %w", err)
	}
	if !okServer || !okUser || !okPassword {
		return nil, ErrNoStoredCredentials
	}
	s := NewSession(string(server), string(user), string(password))
	if err := c.SetSession(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Controller) run() {
	for {
		select {
		case fn := <-c.calls:
			fn()
		case <-c.closed:
			return
		}
	}
}

// do marshals fn onto the owner goroutine without ever blocking the caller,
// so hooks fired from the loop itself cannot deadlock.
func (c *Controller) do(fn func()) {
	select {
	case c.calls <- fn:
		return
	case <-c.closed:
		return
	default:
	}
	go func() {
		select {
		case c.calls <- fn:
		case <-c.closed:
		}
	}()
}

// postGen marshals fn onto the owner goroutine, dropping it if the session
// generation has moved on since gen was captured.
func (c *Controller) postGen(gen uint64, fn func()) {
	c.do(func() {
		if gen != c.gen {
			return
		}
		fn()
	})
}

// call runs fn on the owner goroutine and waits for its result.
func (c *Controller) call(fn func() error) error {
	done := make(chan error, 1)
	select {
	case c.calls <- func() { done <- fn() }:
	case <-c.closed:
		return ErrControllerClosed
	}
	select {
	case err := <-done:
		return err
	case <-c.closed:
		return ErrControllerClosed
	}
}

// teardown destroys the current session: it cancels subscriptions, bumps the
// generation so in-flight completions are dropped, stops the keepalive timer,
// empties the credential cache, forgets the pending challenge, resets both
// observable flags, and clears every persisted credential key including the
// offline keychain blob.
func (c *Controller) teardown() {
	c.session.unsubscribe()
	c.session = nil
	c.gen++
	c.busy = false
	c.challenge = nil
	c.keepalive.Stop()
	c.cache.Clear()
	c.setChallengeAvailable(false)
	c.setError(false)
	for _, key := range secstore.CredentialKeys {
		if err := c.store.Remove(key); err != nil {
			c.logger.Warn("removing persisted secret", "key", string(key), "error", err)
		}
	}
}

// setup installs s: persists the connection credentials and subscribes to the
// session's reactive signals. Hook callbacks are tagged with the current
// generation so signals from a replaced session go nowhere.
func (c *Controller) setup(s *Session) {
	c.session = s
	c.busy = false
	c.challenge = nil
	c.setChallengeAvailable(false)
	c.setError(false)

	c.persist(secstore.KeyServer, []byte(s.Server))
	c.persist(secstore.KeyUser, []byte(s.User))
	c.persist(secstore.KeyPassword, []byte(s.Password))

	gen := c.gen
	s.subscribe(sessionHooks{
		requestsAvailable: func() {
			c.postGen(gen, c.requestSession)
		},
		completionsAvailable: func() {
			c.postGen(gen, c.requestKeychain)
		},
		invalidated: func(reason InvalidationReason) {
			c.postGen(gen, func() { c.handleInvalidation(reason) })
		},
	})
}

// handleInvalidation clears the session reference, triggering the full
// teardown. Deauthorization additionally clears certificate trust and
// notifies the user after a short delay, so the notice does not race the
// presentation layer's own teardown.
func (c *Controller) handleInvalidation(reason InvalidationReason) {
	if c.session == nil {
		return
	}
	c.logger.Info("session invalidated", "reason", int(reason))
	c.teardown()
	if reason == ReasonDeauthorized {
		c.trust.Clear()
		time.AfterFunc(c.deauthNoticeDelay, func() {
			c.notifier.Notify(deauthorizedTitle, deauthorizedMessage)
		})
	}
}

func (c *Controller) persist(key secstore.Key, value []byte) {
	if err := c.store.Store(key, value); err != nil {
		c.logger.Warn("persisting secret", "key", string(key), "error", err)
	}
}

func (c *Controller) setChallengeAvailable(v bool) {
	if c.challengeFlag.Swap(v) != v && c.onStatus != nil {
		c.onStatus()
	}
}

func (c *Controller) setError(v bool) {
	if c.errFlag.Swap(v) != v && c.onStatus != nil {
		c.onStatus()
	}
}
