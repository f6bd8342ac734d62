package store

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

var boltBucket = []byte("records")

// BoltBackend stores JSON-encoded records in a single bbolt bucket. bbolt
// gives every operation its own serialized transaction, so per-key
// atomicity comes from the engine.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) a bbolt database at path.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Get retrieves a record by key.
func (b *BoltBackend) Get(key string) (model.Record, error) {
	var rec model.Record
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("store: get %q: %w", key, err)
	}
	return rec, nil
}

// Set stores a record under key, replacing any previous one.
func (b *BoltBackend) Set(key string, rec model.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// Edit merges partial into the stored record inside one write transaction
// and returns the merged result.
func (b *BoltBackend) Edit(key string, partial model.Record) (model.Record, error) {
	var merged model.Record
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		merged = model.Record{}
		if raw := bucket.Get([]byte(key)); raw != nil {
			if err := json.Unmarshal(raw, &merged); err != nil {
				return err
			}
		}
		merged.Merge(partial)
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), raw)
	})
	if err != nil {
		return nil, fmt.Errorf("store: edit %q: %w", key, err)
	}
	return merged, nil
}

// Remove deletes the record under key.
func (b *BoltBackend) Remove(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("store: remove %q: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys in sorted order (bbolt iterates in key order).
func (b *BoltBackend) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list keys: %w", err)
	}
	return keys, nil
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Compile-time check: *BoltBackend implements Backend.
var _ Backend = (*BoltBackend)(nil)
