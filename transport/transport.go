// Package transport defines the network boundary between a keywarden
// controller and a vault server. The controller only interprets typed
// replies; retries, serialization, and TLS belong to implementations.
package transport

import (
	"context"

	"github.com/jmcleod/keywarden/crypto"
)

// Endpoint identifies the server-side session a call addresses.
type Endpoint struct {
	Server    string
	User      string
	SessionID string
}

// SessionReply is the answer to a RequestSession call. Challenge is nil when
// the server grants the session without proof of password.
type SessionReply struct {
	SessionID string            `json:"session_id"`
	Challenge *crypto.Challenge `json:"challenge,omitempty"`
}

// OpenReply is the answer to an OpenSession call. Keys maps a crypto scheme
// tag to the encrypted keychain blob for that scheme.
type OpenReply struct {
	Success bool              `json:"success"`
	Keys    map[string][]byte `json:"keys,omitempty"`
}

// KeepaliveReply is the answer to a KeepaliveSession heartbeat.
type KeepaliveReply struct {
	Success bool `json:"success"`
}

// Client issues the four session-lifecycle calls. Every call is single-shot:
// an error means transport failure and the caller decides whether anything
// retries. Implementations must honor ctx cancellation.
type Client interface {
	RequestSession(ctx context.Context, ep Endpoint) (*SessionReply, error)
	OpenSession(ctx context.Context, ep Endpoint, solution string) (*OpenReply, error)
	KeepaliveSession(ctx context.Context, ep Endpoint) (*KeepaliveReply, error)
	CloseSession(ctx context.Context, ep Endpoint) error
}
