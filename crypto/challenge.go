// Package crypto implements the versioned cryptographic schemes spoken
// between a keywarden client and a vault server: PWDv1r1 password-challenge
// solving and CSEv1r1 keychain encryption.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/jmcleod/keywarden/internal/util"
)

// Scheme tags identifying the algorithm revision a piece of material belongs to.
const (
	SchemePWD = "PWDv1r1"
	SchemeCSE = "CSEv1r1"
)

const (
	challengeSaltLen  = 16
	challengeNonceLen = 32
)

var (
	// ErrMalformedChallenge indicates the challenge is structurally unusable.
	ErrMalformedChallenge = errors.New("malformed challenge")
	// ErrPasswordRejected indicates the password does not match the challenge verifier.
	ErrPasswordRejected = errors.New("password rejected")
)

// Challenge is the server-issued proof-of-password puzzle. The client derives
// a key from the password and the embedded KDF profile, checks it against the
// verifier, and answers with an HMAC over the nonce.
type Challenge struct {
	Scheme    string              `json:"scheme"`
	Salt      []byte              `json:"salt"`
	Nonce     []byte              `json:"nonce"`
	Verifier  []byte              `json:"verifier"`
	KDFParams util.Argon2idParams `json:"kdf_params"`
}

// SolvePWD answers a PWDv1r1 challenge with the given password.
// It returns ErrPasswordRejected when the derived key does not match the
// challenge verifier, and ErrMalformedChallenge for structurally bad input.
func SolvePWD(ch *Challenge, password string) (string, error) {
	if ch == nil {
		return "", fmt.Errorf("%w: nil challenge", ErrMalformedChallenge)
	}
	if ch.Scheme != SchemePWD {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrMalformedChallenge, ch.Scheme)
	}
	if len(ch.Salt) == 0 || len(ch.Nonce) == 0 || len(ch.Verifier) != sha256.Size {
		return "", fmt.Errorf("%w: missing salt, nonce, or verifier", ErrMalformedChallenge)
	}

	key, err := util.DeriveArgon2idKey(util.Normalize(password), ch.Salt, ch.KDFParams)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}
	defer util.WipeBytes(key)

	digest := sha256.Sum256(key)
	if !util.ConstantTimeEqual(digest[:], ch.Verifier) {
		return "", ErrPasswordRejected
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(ch.Nonce)
	return util.HexEncode(mac.Sum(nil)), nil
}

// NewChallenge builds a solvable PWDv1r1 challenge for the given password.
// Servers (and tests standing in for one) use it; clients only solve.
func NewChallenge(password string) (*Challenge, error) {
	salt, err := util.RandomBytes(challengeSaltLen)
	if err != nil {
		return nil, fmt.Errorf("generating challenge salt: %w", err)
	}
	nonce, err := util.RandomBytes(challengeNonceLen)
	if err != nil {
		return nil, fmt.Errorf("generating challenge nonce: %w", err)
	}

	params := util.DefaultArgon2idParams()
	key, err := util.DeriveArgon2idKey(util.Normalize(password), salt, params)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	digest := sha256.Sum256(key)
	return &Challenge{
		Scheme:    SchemePWD,
		Salt:      salt,
		Nonce:     nonce,
		Verifier:  digest[:],
		KDFParams: params,
	}, nil
}
