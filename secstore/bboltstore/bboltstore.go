// Package bboltstore provides a BBolt-backed secstore.Store so that
// credentials and the offline keychain blob survive process restarts.
package bboltstore

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/keywarden/internal/util"
	"github.com/jmcleod/keywarden/secstore"
)

var secretsBucket = []byte("secrets")

// Store implements secstore.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ secstore.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(secretsBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating secrets bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Store(key secstore.Key, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(secretsBucket).Put([]byte(key), value)
	})
}

func (s *Store) Load(key secstore.Key) ([]byte, bool, error) {
	var value []byte
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(secretsBucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		value = util.CopyBytes(data)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, ok, nil
}

func (s *Store) Remove(key secstore.Key) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(secretsBucket).Delete([]byte(key))
	})
}
