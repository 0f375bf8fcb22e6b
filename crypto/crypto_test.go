package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolvePWD_RoundTrip(t *testing.T) {
	ch, err := NewChallenge("correct horse")
	require.NoError(t, err)
	require.Equal(t, SchemePWD, ch.Scheme)

	solution, err := SolvePWD(ch, "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, solution)

	// The solution is a deterministic function of challenge and password.
	again, err := SolvePWD(ch, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, solution, again)
}

func TestSolvePWD_WrongPassword(t *testing.T) {
	ch, err := NewChallenge("correct horse")
	require.NoError(t, err)

	_, err = SolvePWD(ch, "battery staple")
	require.ErrorIs(t, err, ErrPasswordRejected)
}

func TestSolvePWD_NormalizesPassword(t *testing.T) {
	// NFC "é" vs NFKD "e" + combining acute must derive the same key.
	ch, err := NewChallenge("café")
	require.NoError(t, err)

	_, err = SolvePWD(ch, "café")
	require.NoError(t, err)
}

func TestSolvePWD_Malformed(t *testing.T) {
	tests := []struct {
		name string
		ch   *Challenge
	}{
		{"nil challenge", nil},
		{"wrong scheme", &Challenge{Scheme: "PWDv2r1"}},
		{"missing salt", &Challenge{Scheme: SchemePWD, Nonce: []byte{1}, Verifier: make([]byte, 32)}},
		{"short verifier", &Challenge{Scheme: SchemePWD, Salt: []byte{1}, Nonce: []byte{1}, Verifier: []byte{1, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SolvePWD(tt.ch, "pw")
			require.ErrorIs(t, err, ErrMalformedChallenge)
		})
	}
}

func TestKeychain_EncryptDecrypt(t *testing.T) {
	kc := &Keychain{
		Ver: 1,
		Keys: map[string][]byte{
			"vault-key": {0x01, 0x02, 0x03},
		},
	}

	blob, err := EncryptKeychain(kc, "pw1")
	require.NoError(t, err)

	out, err := DecryptKeychain(blob, "pw1")
	require.NoError(t, err)
	assert.Equal(t, kc.Ver, out.Ver)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, out.Key("vault-key"))
	assert.Nil(t, out.Key("missing"))
}

func TestKeychain_DecryptWrongPassword(t *testing.T) {
	kc := &Keychain{Ver: 1, Keys: map[string][]byte{"k": {0xAA}}}
	blob, err := EncryptKeychain(kc, "pw1")
	require.NoError(t, err)

	_, err = DecryptKeychain(blob, "pw2")
	require.ErrorIs(t, err, ErrPasswordRejected)
}

func TestKeychain_DecryptMalformed(t *testing.T) {
	_, err := DecryptKeychain([]byte{0x01, 0x02}, "pw")
	require.ErrorIs(t, err, ErrMalformedKeychain)
}

func TestKeychain_DecryptUnsupportedVersion(t *testing.T) {
	blob := make([]byte, 64)
	blob[0] = 9
	_, err := DecryptKeychain(blob, "pw")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPasswordRejected)
}

func TestKeychain_Wipe(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03}
	kc := &Keychain{Ver: 1, Keys: map[string][]byte{"k": raw}}

	kc.Wipe()
	assert.Empty(t, kc.Keys)
	assert.Equal(t, []byte{0, 0, 0}, raw)
}
