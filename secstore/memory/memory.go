// Package memory provides a thread-safe in-memory implementation of
// secstore.Store. Suitable for testing, demos, and single-process use.
package memory

import (
	"sync"

	"github.com/jmcleod/keywarden/internal/util"
	"github.com/jmcleod/keywarden/secstore"
)

// Store is a thread-safe in-memory secstore.Store. Secrets are lost on
// process exit.
type Store struct {
	mu   sync.RWMutex
	data map[secstore.Key][]byte
}

var _ secstore.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[secstore.Key][]byte)}
}

func (s *Store) Store(key secstore.Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = util.CopyBytes(value)
	return nil
}

func (s *Store) Load(key secstore.Key) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return util.CopyBytes(value), true, nil
}

func (s *Store) Remove(key secstore.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := s.data[key]; ok {
		util.WipeBytes(value)
		delete(s.data, key)
	}
	return nil
}
