// Package session manages the authenticated session lifecycle for a client
// of a remote secrets-vault server: establishing a session, solving the
// server-issued challenge, falling back to a locally cached encrypted
// keychain when offline, keeping the session alive with heartbeats, and
// reacting to server-driven invalidation.
package session

import (
	"sync"

	"github.com/jmcleod/keywarden/crypto"
)

// InvalidationReason records why a session was torn down.
type InvalidationReason int

const (
	// ReasonLogout is a user-initiated session close.
	ReasonLogout InvalidationReason = iota + 1
	// ReasonDeauthorized is a server-driven revocation of the client's authorization.
	ReasonDeauthorized
)

// Session is the active connection and credential context between the client
// and a vault server. Its connection credentials are immutable for the
// session's life; everything else is mutated by the owning Controller or by
// producers queueing work through QueueRequest and QueueCompletion.
type Session struct {
	Server   string
	User     string
	Password string

	mu                 sync.Mutex
	sessionID          string
	keychain           *crypto.Keychain
	pendingRequests    []func()
	pendingCompletions []func()
	invalidation       InvalidationReason
	hooks              sessionHooks
}

// sessionHooks are the controller's subscriptions to the session's reactive
// signals. All three fire outside the session lock.
type sessionHooks struct {
	requestsAvailable    func()
	completionsAvailable func()
	invalidated          func(InvalidationReason)
}

// NewSession creates a session for the given connection credentials.
func NewSession(server, user, password string) *Session {
	return &Session{
		Server:   server,
		User:     user,
		Password: password,
	}
}

// SessionID returns the server-issued session token, if one has been issued.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) setSessionID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = id
}

// Keychain returns the decrypted vault keychain, or nil before the first
// successful challenge solve or offline decrypt.
func (s *Session) Keychain() *crypto.Keychain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keychain
}

func (s *Session) setKeychain(kc *crypto.Keychain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keychain = kc
}

// QueueRequest queues work that needs a live session. The first request
// queued onto an empty queue signals the subscribed controller; requests run
// once the session has been opened.
func (s *Session) QueueRequest(fn func()) {
	s.mu.Lock()
	s.pendingRequests = append(s.pendingRequests, fn)
	edge := len(s.pendingRequests) == 1
	hook := s.hooks.requestsAvailable
	s.mu.Unlock()
	if edge && hook != nil {
		hook()
	}
}

// QueueCompletion queues work that needs the decrypted keychain. The first
// completion queued onto an empty queue signals the subscribed controller.
func (s *Session) QueueCompletion(fn func()) {
	s.mu.Lock()
	s.pendingCompletions = append(s.pendingCompletions, fn)
	edge := len(s.pendingCompletions) == 1
	hook := s.hooks.completionsAvailable
	s.mu.Unlock()
	if edge && hook != nil {
		hook()
	}
}

// SignalRequests re-arms the pending-requests signal. Producers call it to
// retry after a failed attempt: nothing in the protocol retries on its own.
// It fires only if requests are actually queued.
func (s *Session) SignalRequests() {
	s.mu.Lock()
	pending := len(s.pendingRequests) > 0
	hook := s.hooks.requestsAvailable
	s.mu.Unlock()
	if pending && hook != nil {
		hook()
	}
}

// SignalCompletions re-arms the pending-completions signal, firing only if
// completions are actually queued.
func (s *Session) SignalCompletions() {
	s.mu.Lock()
	pending := len(s.pendingCompletions) > 0
	hook := s.hooks.completionsAvailable
	s.mu.Unlock()
	if pending && hook != nil {
		hook()
	}
}

// Invalidate marks the session for teardown. Only the first call has any
// effect; the session is torn down exactly once.
func (s *Session) Invalidate(reason InvalidationReason) {
	s.mu.Lock()
	if s.invalidation != 0 {
		s.mu.Unlock()
		return
	}
	s.invalidation = reason
	hook := s.hooks.invalidated
	s.mu.Unlock()
	if hook != nil {
		hook(reason)
	}
}

// InvalidationReason returns why the session was invalidated, or zero while
// it is still live.
func (s *Session) InvalidationReason() InvalidationReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidation
}

// subscribe installs the controller's hooks. Signals whose condition already
// holds fire immediately so the controller observes state established before
// the subscription.
func (s *Session) subscribe(h sessionHooks) {
	s.mu.Lock()
	s.hooks = h
	requests := len(s.pendingRequests) > 0
	completions := len(s.pendingCompletions) > 0
	invalidation := s.invalidation
	s.mu.Unlock()

	if requests && h.requestsAvailable != nil {
		h.requestsAvailable()
	}
	if completions && h.completionsAvailable != nil {
		h.completionsAvailable()
	}
	if invalidation != 0 && h.invalidated != nil {
		h.invalidated(invalidation)
	}
}

// unsubscribe removes all hooks so late signals from a torn-down session go
// nowhere.
func (s *Session) unsubscribe() {
	s.mu.Lock()
	s.hooks = sessionHooks{}
	s.mu.Unlock()
}

func (s *Session) takePendingRequests() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.pendingRequests
	s.pendingRequests = nil
	return taken
}

func (s *Session) takePendingCompletions() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.pendingCompletions
	s.pendingCompletions = nil
	return taken
}
