package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/domain/token"
)

// identityResolver decides which identity slot is currently active.
//
// Precedence is absolute: a valid admin slot wins regardless of the user
// slot's state. Along the way it self-heals: corrupted, partial, expired,
// or misplaced records are cleared silently, and callers only ever observe
// the resolution flipping to none.
type identityResolver struct {
	store  session.Store
	issuer *token.Issuer
	idle   time.Duration
	logger *slog.Logger
	// emit publishes lifecycle events for slots cleared during resolution.
	emit func(session.Event)

	// lastFingerprint is a hash of the previously resolved tuple. A resolve
	// returning the same fingerprint is reported as unchanged so consumers
	// can skip redundant notifications. Guarded by the facade's mutex.
	lastFingerprint uint64
}

// resolve runs the precedence algorithm at the given instant. Returns the
// resolution and whether it differs from the previous one.
func (r *identityResolver) resolve(ctx context.Context, now time.Time) (Resolution, bool) {
	// Admin slot first: precedence.
	if record := r.loadValid(ctx, session.SlotAdmin, now); record != nil {
		return r.finish(Resolution{
			Slot:      session.SlotAdmin,
			Principal: &record.Principal,
			Record:    record,
		})
	}

	// User slot only considered once the admin slot is known invalid.
	if record := r.loadValid(ctx, session.SlotUser, now); record != nil {
		return r.finish(Resolution{
			Slot:      session.SlotUser,
			Principal: &record.Principal,
			Record:    record,
		})
	}

	return r.finish(Resolution{})
}

// loadValid loads one slot and applies the validity checks in order:
// structural, semantic (kind matches slot), token decode, expiry.
// Any failure clears the slot and returns nil.
func (r *identityResolver) loadValid(ctx context.Context, slot session.Slot, now time.Time) *session.Record {
	record, err := r.store.Load(ctx, slot)
	if err != nil {
		if errors.Is(err, session.ErrCorruptedRecord) {
			r.logger.Warn("clearing corrupted session record", "slot", slot, "error", err)
			r.clear(ctx, slot, session.EventCleared, session.ExpiryNone, record)
			return nil
		}
		// Backend failure: treat as absent but do not destroy state we
		// could not even read.
		r.logger.Error("session store load failed", "slot", slot, "error", err)
		return nil
	}
	if record == nil {
		return nil
	}

	if !record.StructurallyValid() {
		r.logger.Warn("clearing partial session record", "slot", slot)
		r.clear(ctx, slot, session.EventCleared, session.ExpiryNone, record)
		return nil
	}

	// An admin-tagged principal must never live in the user slot (and vice
	// versa): a misplaced record is corruption, not a session.
	if record.Principal.Kind != slot.ExpectedKind() {
		r.logger.Warn("clearing misplaced session record",
			"slot", slot, "kind", record.Principal.Kind)
		r.clear(ctx, slot, session.EventCleared, session.ExpiryNone, record)
		return nil
	}

	claims, err := r.issuer.Decode(record.Token)
	if err != nil {
		r.logger.Warn("clearing session with undecodable token", "slot", slot, "error", err)
		r.clear(ctx, slot, session.EventCleared, session.ExpiryNone, record)
		return nil
	}
	if claims.Subject != record.Principal.ID {
		r.logger.Warn("clearing session with token/snapshot mismatch",
			"slot", slot, "token_subject", claims.Subject, "snapshot_id", record.Principal.ID)
		r.clear(ctx, slot, session.EventCleared, session.ExpiryNone, record)
		return nil
	}

	if reason := record.Expired(now, r.idle); reason != session.ExpiryNone {
		r.logger.Info("session expired", "slot", slot, "reason", reason,
			"principal_id", record.Principal.ID)
		r.clear(ctx, slot, session.EventExpired, reason, record)
		return nil
	}

	return record
}

// clear removes a slot's record and publishes the corresponding event.
func (r *identityResolver) clear(ctx context.Context, slot session.Slot, eventType session.EventType, reason session.ExpiryReason, record *session.Record) {
	if err := r.store.Clear(ctx, slot); err != nil {
		r.logger.Error("failed to clear session slot", "slot", slot, "error", err)
		return
	}
	event := session.Event{
		Type:   eventType,
		Slot:   slot,
		Reason: reason,
		At:     time.Now().UTC(),
	}
	if record != nil && record.Principal.ID != "" {
		p := record.Principal
		event.Principal = &p
	}
	r.emit(event)
}

// finish fingerprints the resolution and reports whether it changed.
func (r *identityResolver) finish(res Resolution) (Resolution, bool) {
	fp := fingerprint(res)
	changed := fp != r.lastFingerprint
	r.lastFingerprint = fp
	return res, changed
}

// fingerprint hashes the externally observable resolved tuple. Activity
// timestamps are excluded on purpose: a touch alone must not read as a
// changed identity.
func fingerprint(res Resolution) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(string(res.Slot))
	_, _ = h.Write([]byte{0})
	if res.Principal != nil {
		_, _ = h.WriteString(res.Principal.ID)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(res.Principal.Email)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(string(res.Principal.Role))
		_, _ = h.Write([]byte{0})
	}
	if res.Record != nil {
		_, _ = h.WriteString(res.Record.Token)
	}
	return h.Sum64()
}
