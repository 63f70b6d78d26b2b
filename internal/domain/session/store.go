package session

import (
	"context"
	"errors"
	"time"
)

// Store key names within a slot. Backends persist four parallel keys per
// slot plus a shared schema version marker, mirroring the browser-local
// key/value layout the session layer was designed around.
const (
	// KeyToken holds the opaque session token.
	KeyToken = "token"
	// KeyPrincipal holds the JSON-encoded principal snapshot.
	KeyPrincipal = "principal"
	// KeyAbsoluteExpiry holds the absolute deadline as an epoch-ms string.
	KeyAbsoluteExpiry = "absoluteExpiry"
	// KeyLastActivity holds the activity watermark as an epoch-ms string.
	KeyLastActivity = "lastActivity"

	// SchemaVersionKey marks the store layout version.
	SchemaVersionKey = "schemaVersion"
	// SchemaVersion is the current store layout version.
	SchemaVersion = "1"
)

// ErrCorruptedRecord is returned by Store.Load when a slot holds data that
// cannot be decoded into a Record: unparsable principal JSON, a partial key
// set, a non-numeric timestamp, or an unknown schema version. Callers treat
// the slot as absent and clear it (self-heal).
var ErrCorruptedRecord = errors.New("corrupted session record")

// Store persists one Record per slot in a durable local key/value store.
//
// Implementations: localstore (file-backed, default), boltstore (bbolt),
// memory (tests). The store is single-process and last-write-wins; no
// cross-call locking is required beyond each backend's internal safety.
type Store interface {
	// Load reads a slot's record. Returns (nil, nil) when the slot is
	// absent, and (nil, ErrCorruptedRecord) when present but undecodable.
	Load(ctx context.Context, slot Slot) (*Record, error)

	// Save writes a slot's complete record. All four keys are written
	// together; a successful Save never leaves a partial record.
	Save(ctx context.Context, slot Slot, record *Record) error

	// TouchActivity updates only the slot's last-activity watermark.
	// A no-op when the slot is absent.
	TouchActivity(ctx context.Context, slot Slot, at time.Time) error

	// Clear removes all of a slot's keys. Idempotent.
	Clear(ctx context.Context, slot Slot) error

	// Close releases backend resources.
	Close() error
}
