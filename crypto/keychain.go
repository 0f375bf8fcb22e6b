package crypto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/keywarden/internal/util"
)

// ErrMalformedKeychain indicates the encrypted blob is structurally unusable.
var ErrMalformedKeychain = errors.New("malformed keychain blob")

const (
	keychainVersion = 1
	keychainSaltLen = 16
)

const keychainAAD = "keywarden:keychain:" + SchemeCSE

// Keychain holds the decrypted key material of a vault. Callers must call
// Wipe() when done to zero the raw keys from memory.
type Keychain struct {
	Ver  int               `json:"ver"`
	Keys map[string][]byte `json:"keys"`
}

// Key returns the raw key registered under the given ID, or nil.
func (k *Keychain) Key(id string) []byte {
	if k == nil {
		return nil
	}
	return k.Keys[id]
}

// Wipe zeroes all raw key material held by the keychain.
func (k *Keychain) Wipe() {
	if k == nil {
		return
	}
	for id, raw := range k.Keys {
		util.WipeBytes(raw)
		delete(k.Keys, id)
	}
}

// EncryptKeychain seals a keychain into a CSEv1r1 blob protected by the given
// password. The output format is:
//
//	version (1 byte) || salt (16 bytes) || AES-256-GCM ciphertext
//
// The encryption key is derived from the password using Argon2id.
func EncryptKeychain(kc *Keychain, password string) ([]byte, error) {
	if kc == nil {
		return nil, fmt.Errorf("keychain must not be nil")
	}
	if password == "" {
		return nil, fmt.Errorf("password must not be empty")
	}

	plaintext, err := json.Marshal(kc)
	if err != nil {
		return nil, fmt.Errorf("marshaling keychain: %w", err)
	}
	defer util.WipeBytes(plaintext)

	salt, err := util.RandomBytes(keychainSaltLen)
	if err != nil {
		return nil, fmt.Errorf("generating keychain salt: %w", err)
	}

	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, util.DefaultArgon2idParams())
	if err != nil {
		return nil, fmt.Errorf("deriving keychain key: %w", err)
	}
	defer util.WipeBytes(key)

	ciphertext, err := util.EncryptAES(plaintext, key, []byte(keychainAAD))
	if err != nil {
		return nil, fmt.Errorf("encrypting keychain: %w", err)
	}

	out := make([]byte, 0, 1+keychainSaltLen+len(ciphertext))
	out = append(out, byte(keychainVersion))
	out = append(out, salt...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptKeychain opens a CSEv1r1 blob previously created by EncryptKeychain.
// It returns ErrPasswordRejected when the password cannot open the blob.
func DecryptKeychain(blob []byte, password string) (*Keychain, error) {
	if len(blob) < 1+keychainSaltLen {
		return nil, fmt.Errorf("%w: too short", ErrMalformedKeychain)
	}
	if version := blob[0]; version != keychainVersion {
		return nil, fmt.Errorf("unsupported keychain version: %d", version)
	}
	salt := blob[1 : 1+keychainSaltLen]
	ciphertext := blob[1+keychainSaltLen:]

	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, util.DefaultArgon2idParams())
	if err != nil {
		return nil, fmt.Errorf("deriving keychain key: %w", err)
	}
	defer util.WipeBytes(key)

	plaintext, err := util.DecryptAES(ciphertext, key, []byte(keychainAAD))
	if err != nil {
		return nil, ErrPasswordRejected
	}
	defer util.WipeBytes(plaintext)

	var kc Keychain
	if err := json.Unmarshal(plaintext, &kc); err != nil {
		return nil, fmt.Errorf("unmarshaling keychain: %w", err)
	}
	return &kc, nil
}
