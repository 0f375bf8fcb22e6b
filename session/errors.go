package session

import "errors"

var (
	// ErrNoSession indicates the entry point needs an active session.
	ErrNoSession = errors.New("no active session")
	// ErrControllerClosed indicates the controller has been shut down.
	ErrControllerClosed = errors.New("controller closed")
	// ErrNoStoredCredentials indicates the secret store holds no complete
	// server/user/password triple to restore a session from.
	ErrNoStoredCredentials = errors.New("no stored credentials")
)
