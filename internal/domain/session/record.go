// Package session holds the session record, clock, and store contract for
// the dual-identity lifecycle manager.
package session

import (
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// Slot is the storage partition holding one identity's session record.
// Exactly two slots exist: admin and user. When both hold valid records,
// the admin slot takes precedence.
type Slot string

const (
	// SlotAdmin holds the administrator session.
	SlotAdmin Slot = "admin"
	// SlotUser holds the regular user session.
	SlotUser Slot = "user"
)

// Slots lists the two slots in precedence order (admin first).
func Slots() []Slot {
	return []Slot{SlotAdmin, SlotUser}
}

// ExpectedKind returns the principal kind that legitimately lives in a slot.
// A mismatch (e.g. an admin-tagged principal in the user slot) marks the
// record as misplaced and it is discarded on resolve.
func (s Slot) ExpectedKind() principal.Kind {
	if s == SlotAdmin {
		return principal.KindAdmin
	}
	return principal.KindUser
}

// Record is one slot's session state: the opaque token, the denormalized
// principal snapshot, and the expiry clock.
type Record struct {
	Token     string
	Principal principal.Principal
	Clock     Clock
}

// StructurallyValid reports whether the record can be trusted at all:
// a token must coexist with a principal snapshot that has an ID. Partial
// records do not survive a read; callers treat them as absent and clear.
func (r *Record) StructurallyValid() bool {
	return r != nil && r.Token != "" && r.Principal.ID != ""
}

// Expired returns the expiry reason for this record at the given instant,
// or ExpiryNone when the record is still valid. Absolute expiry is checked
// first so a session past its fixed deadline never reports as merely idle.
func (r *Record) Expired(now time.Time, idleDuration time.Duration) ExpiryReason {
	if r.Clock.AbsoluteExpired(now) {
		return ExpiryAbsolute
	}
	if r.Clock.IdleExpired(now, idleDuration) {
		return ExpiryIdle
	}
	return ExpiryNone
}

// ExpiryReason distinguishes why a record stopped being valid.
type ExpiryReason string

const (
	// ExpiryNone means the record is still valid.
	ExpiryNone ExpiryReason = ""
	// ExpiryAbsolute means the fixed wall-clock deadline passed.
	ExpiryAbsolute ExpiryReason = "absolute"
	// ExpiryIdle means too long elapsed since the last interaction.
	ExpiryIdle ExpiryReason = "idle"
)
