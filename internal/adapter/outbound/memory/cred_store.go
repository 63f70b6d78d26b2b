// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/session"
)

// CredentialStore implements session.Store with an in-memory map.
// Thread-safe for concurrent access. For development/testing only.
type CredentialStore struct {
	mu    sync.RWMutex
	slots map[session.Slot]map[string]string
}

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		slots: make(map[session.Slot]map[string]string),
	}
}

// Load reads a slot's record.
func (s *CredentialStore) Load(_ context.Context, slot session.Slot) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.slots[slot]
	if !ok {
		return nil, nil
	}
	// Copy so decode failures can't be racily mutated away.
	snapshot := make(map[string]string, len(values))
	for k, v := range values {
		snapshot[k] = v
	}
	return session.DecodeRecord(snapshot)
}

// Save writes a slot's complete record.
func (s *CredentialStore) Save(_ context.Context, slot session.Slot, record *session.Record) error {
	values, err := session.EncodeRecord(record)
	if err != nil {
		return err
	}
	values[session.SchemaVersionKey] = session.SchemaVersion

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = values
	return nil
}

// TouchActivity updates only the last-activity watermark. No-op when the
// slot is absent.
func (s *CredentialStore) TouchActivity(_ context.Context, slot session.Slot, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, ok := s.slots[slot]
	if !ok {
		return nil
	}
	values[session.KeyLastActivity] = strconv.FormatInt(at.UnixMilli(), 10)
	return nil
}

// Clear removes all of a slot's keys. Idempotent.
func (s *CredentialStore) Clear(_ context.Context, slot session.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.slots, slot)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *CredentialStore) Close() error {
	return nil
}

// SetRaw overwrites a slot's raw key set. Test hook for simulating
// corrupted or partial persisted state.
func (s *CredentialStore) SetRaw(slot session.Slot, values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	s.slots[slot] = copied
}

// Raw returns a copy of a slot's raw key set, or nil when absent.
// Test hook for asserting exactly which keys survive a transition.
func (s *CredentialStore) Raw(slot session.Slot) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, ok := s.slots[slot]
	if !ok {
		return nil
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return copied
}

// Compile-time interface verification.
var _ session.Store = (*CredentialStore)(nil)
