package boltstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
	"github.com/miradorhq/sessiond/internal/domain/session"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(now time.Time) *session.Record {
	record := &session.Record{
		Token: "tok-1",
		Principal: principal.Principal{
			ID:     "user-1",
			Email:  "ana@example.org",
			Role:   principal.RoleReadOnly,
			Active: true,
			Kind:   principal.KindUser,
		},
	}
	record.Clock.Start(now, session.DefaultAbsoluteDuration)
	return record
}

func TestBoltRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	loaded, err := store.Load(ctx, session.SlotUser)
	if err != nil || loaded != nil {
		t.Fatalf("Load from fresh db = %+v, %v", loaded, err)
	}

	record := testRecord(now)
	if err := store.Save(ctx, session.SlotUser, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err = store.Load(ctx, session.SlotUser)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Token != record.Token || loaded.Principal != record.Principal {
		t.Errorf("loaded = %+v, want %+v", loaded, record)
	}
	if !loaded.Clock.LastActivity.Equal(record.Clock.LastActivity) {
		t.Errorf("LastActivity = %v, want %v", loaded.Clock.LastActivity, record.Clock.LastActivity)
	}
}

func TestBoltSaveOverwritesCompletely(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, session.SlotUser, testRecord(now)); err != nil {
		t.Fatalf("first Save: %v", err)
	}

	replacement := testRecord(now.Add(time.Hour))
	replacement.Token = "tok-2"
	replacement.Principal.ID = "user-2"
	if err := store.Save(ctx, session.SlotUser, replacement); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := store.Load(ctx, session.SlotUser)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Token != "tok-2" || loaded.Principal.ID != "user-2" {
		t.Errorf("loaded = %+v, want the replacement record", loaded)
	}
}

func TestBoltTouchActivity(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Touch on an absent slot does nothing.
	if err := store.TouchActivity(ctx, session.SlotAdmin, now); err != nil {
		t.Fatalf("TouchActivity on absent slot: %v", err)
	}
	loaded, err := store.Load(ctx, session.SlotAdmin)
	if err != nil || loaded != nil {
		t.Fatalf("touch created a record: %+v, %v", loaded, err)
	}

	if err := store.Save(ctx, session.SlotAdmin, testRecord(now)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	later := now.Add(30 * time.Minute)
	if err := store.TouchActivity(ctx, session.SlotAdmin, later); err != nil {
		t.Fatalf("TouchActivity: %v", err)
	}

	loaded, err = store.Load(ctx, session.SlotAdmin)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Clock.LastActivity.Equal(later) {
		t.Errorf("LastActivity = %v, want %v", loaded.Clock.LastActivity, later)
	}
}

func TestBoltClear(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, session.SlotUser, testRecord(now)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Clear(ctx, session.SlotUser); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	loaded, err := store.Load(ctx, session.SlotUser)
	if err != nil || loaded != nil {
		t.Errorf("slot after clear = %+v, %v, want absent", loaded, err)
	}

	// Idempotent.
	if err := store.Clear(ctx, session.SlotUser); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestBoltSlotsAreIndependent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	admin := testRecord(now)
	admin.Principal.Kind = principal.KindAdmin
	admin.Principal.ID = "admin-1"
	admin.Token = "tok-admin"

	if err := store.Save(ctx, session.SlotAdmin, admin); err != nil {
		t.Fatalf("Save admin: %v", err)
	}
	if err := store.Save(ctx, session.SlotUser, testRecord(now)); err != nil {
		t.Fatalf("Save user: %v", err)
	}

	if err := store.Clear(ctx, session.SlotUser); err != nil {
		t.Fatalf("Clear user: %v", err)
	}

	loaded, err := store.Load(ctx, session.SlotAdmin)
	if err != nil || loaded == nil {
		t.Fatalf("admin slot lost: %+v, %v", loaded, err)
	}
	if loaded.Token != "tok-admin" {
		t.Errorf("admin token = %q", loaded.Token)
	}
}
