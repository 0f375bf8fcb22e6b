// Package secstore defines the secure persistent key-value store a keywarden
// controller uses to carry credentials and the offline keychain blob across
// process restarts.
package secstore

// Key identifies one of the logical secrets the controller persists.
type Key string

const (
	KeyServer            Key = "server"
	KeyUser              Key = "user"
	KeyPassword          Key = "password"
	KeyChallengePassword Key = "challengePassword"
	KeyOfflineKeychain   Key = "offlineKeychain"
)

// CredentialKeys lists every key cleared together on session teardown.
var CredentialKeys = []Key{
	KeyServer,
	KeyUser,
	KeyPassword,
	KeyChallengePassword,
	KeyOfflineKeychain,
}

// Store is a minimal secret store. Implementations must be safe for
// concurrent use. Remove of an absent key is not an error.
type Store interface {
	Store(key Key, value []byte) error
	Load(key Key) ([]byte, bool, error)
	Remove(key Key) error
}

// CertTrustCache is the externally owned accepted-certificate cache. The
// controller only ever clears it, on logout and on deauthorization.
type CertTrustCache interface {
	Clear()
}
