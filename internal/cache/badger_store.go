package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nodecraft/identity-gateway/internal/logging"
)

// BadgerStore is the persistent byte store backing the gateway's profile
// cache and the Hytale token manager's StoredTokens blob.
// Badger's own per-key TTL (badger.Entry.WithTTL) is used directly, so
// expiry is enforced by the store itself rather than by this package.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if absent) a Badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the underlying Badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// IsOpen reports whether the underlying Badger database is still usable,
// for the readiness probe.
func (s *BadgerStore) IsOpen() bool {
	return !s.db.IsClosed()
}

// Get implements Store. Any Badger error (including ErrKeyNotFound) is
// reported as a clean miss, so a cache outage never blocks the response
// contract — the caller proceeds as though the key were absent.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Warn().Err(err).Str("key", key).Msg("badger cache read failed, treating as miss")
		}
		return nil, false, nil
	}
	return value, true, nil
}

// Put implements Store.
func (s *BadgerStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}
