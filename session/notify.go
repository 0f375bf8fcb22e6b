package session

// Notifier surfaces user-visible notifications. The presentation layer
// decides how they are shown.
type Notifier interface {
	Notify(title, message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Notify(string, string) {}

const (
	incorrectPasswordTitle   = "Incorrect password"
	incorrectPasswordMessage = "The password could not unlock the vault keychain. Check it and try again."

	deauthorizedTitle   = "Application deauthorized"
	deauthorizedMessage = "The server has revoked this application's authorization. Sign in again to continue."
)

// nopTrustCache is the default accepted-certificate cache when none is injected.
type nopTrustCache struct{}

func (nopTrustCache) Clear() {}
