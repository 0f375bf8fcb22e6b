package bboltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keywarden/secstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "secrets.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Store(secstore.KeyOfflineKeychain, []byte("BLOB1")))

	value, ok, err := s.Load(secstore.KeyOfflineKeychain)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("BLOB1"), value)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Load(secstore.KeyChallengePassword)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Store(secstore.KeyUser, []byte("alice")))
	require.NoError(t, s.Remove(secstore.KeyUser))

	_, ok, err := s.Load(secstore.KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(secstore.KeyUser))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.db")

	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Store(secstore.KeyServer, []byte("vault.example")))
	require.NoError(t, s.Close())

	reopened, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Load(secstore.KeyServer)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("vault.example"), value)
}
