// Package boltstore provides a bbolt-backed credential store.
//
// Each identity slot maps to one bucket holding the four record keys plus
// the schema version marker. bbolt gives the same durability guarantees as
// the file store with real transactional writes instead of whole-file
// rewrites, at the cost of a binary on-disk format.
package boltstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/miradorhq/sessiond/internal/domain/session"
)

// Store implements session.Store backed by a bbolt database.
type Store struct {
	db *bbolt.DB
}

// New returns a store backed by the given bbolt database.
func New(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a bbolt database at the given path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketName(slot session.Slot) []byte {
	return []byte("slot:" + string(slot))
}

// Load reads a slot's record.
func (s *Store) Load(_ context.Context, slot session.Slot) (*session.Record, error) {
	var values map[string]string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(slot))
		if b == nil {
			return nil
		}
		values = make(map[string]string)
		return b.ForEach(func(k, v []byte) error {
			values[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", slot, err)
	}
	if values == nil {
		return nil, nil
	}

	if version, ok := values[session.SchemaVersionKey]; ok && version != session.SchemaVersion {
		return nil, fmt.Errorf("%w: unknown schema version %q", session.ErrCorruptedRecord, version)
	}
	delete(values, session.SchemaVersionKey)

	return session.DecodeRecord(values)
}

// Save writes a slot's complete record in one transaction.
func (s *Store) Save(_ context.Context, slot session.Slot, record *session.Record) error {
	encoded, err := session.EncodeRecord(record)
	if err != nil {
		return err
	}
	encoded[session.SchemaVersionKey] = session.SchemaVersion

	return s.db.Update(func(tx *bbolt.Tx) error {
		// Recreate the bucket so stale keys never linger under a new record.
		if tx.Bucket(bucketName(slot)) != nil {
			if err := tx.DeleteBucket(bucketName(slot)); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketName(slot))
		if err != nil {
			return err
		}
		for k, v := range encoded {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// TouchActivity updates only the last-activity key. No-op when the slot
// is absent.
func (s *Store) TouchActivity(_ context.Context, slot session.Slot, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(slot))
		if b == nil || b.Get([]byte(session.KeyToken)) == nil {
			return nil
		}
		ms := strconv.FormatInt(at.UnixMilli(), 10)
		return b.Put([]byte(session.KeyLastActivity), []byte(ms))
	})
}

// Clear removes the slot's bucket. Idempotent.
func (s *Store) Clear(_ context.Context, slot session.Slot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketName(slot)) == nil {
			return nil
		}
		return tx.DeleteBucket(bucketName(slot))
	})
}

// Compile-time interface verification.
var _ session.Store = (*Store)(nil)
