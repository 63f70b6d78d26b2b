package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/miradorhq/sessiond/internal/adapter/outbound/directory"
	"github.com/miradorhq/sessiond/internal/adapter/outbound/memory"
	"github.com/miradorhq/sessiond/internal/domain/principal"
	"github.com/miradorhq/sessiond/internal/domain/secret"
	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/domain/token"
)

const testLoginSecret = "hunter2-but-longer"

// hashOnce caches the Argon2id hash of testLoginSecret; hashing is
// deliberately expensive and every test would otherwise pay for it.
var (
	hashOnce   sync.Once
	testHash   string
	hashErr    error
	testSecret = []byte("unit-test-signing-secret-123456")
)

func loginSecretHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		testHash, hashErr = secret.Hash(testLoginSecret)
	})
	if hashErr != nil {
		t.Fatalf("hashing test secret: %v", hashErr)
	}
	return testHash
}

// staticDirectory is an in-memory Directory for tests.
type staticDirectory struct {
	admins []directory.Record
	users  []directory.Record
	err    error
}

func (d *staticDirectory) Admins(context.Context) ([]directory.Record, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.admins, nil
}

func (d *staticDirectory) Users(context.Context) ([]directory.Record, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.users, nil
}

var _ directory.Directory = (*staticDirectory)(nil)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func adminRecord(t *testing.T) directory.Record {
	return directory.Record{
		Principal: principal.Principal{
			ID:     "admin-1",
			Email:  "ana@example.org",
			Name:   "Ana",
			Role:   principal.RoleAdmin,
			Active: true,
			Kind:   principal.KindAdmin,
		},
		SecretHash: loginSecretHash(t),
	}
}

func userRecord(t *testing.T) directory.Record {
	return directory.Record{
		Principal: principal.Principal{
			ID:     "user-9",
			Email:  "beto@example.org",
			Name:   "Beto",
			Role:   principal.RoleReadOnly,
			Active: true,
			Kind:   principal.KindUser,
		},
		SecretHash: loginSecretHash(t),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(t *testing.T, dir directory.Directory) (*AuthService, *memory.CredentialStore, *fakeClock) {
	t.Helper()
	store := memory.NewCredentialStore()
	clock := newFakeClock()
	svc := New(store, dir, token.NewIssuer(testSecret), Config{}, testLogger(), WithNowFunc(clock.Now))
	t.Cleanup(svc.Close)
	return svc, store, clock
}

func TestLoginSuccessAdmin(t *testing.T) {
	dir := &staticDirectory{admins: []directory.Record{adminRecord(t)}}
	svc, store, _ := newTestService(t, dir)
	ctx := context.Background()

	result := svc.Login(ctx, "ana@example.org", testLoginSecret, true)
	if !result.Success {
		t.Fatalf("Login failed: %+v", result)
	}
	if result.Code != LoginOK {
		t.Errorf("Code = %q, want ok", result.Code)
	}
	if result.Principal == nil || result.Principal.ID != "admin-1" {
		t.Errorf("Principal = %+v", result.Principal)
	}

	// All four keys plus the schema version marker landed in the admin slot.
	raw := store.Raw(session.SlotAdmin)
	for _, key := range []string{session.KeyToken, session.KeyPrincipal, session.KeyAbsoluteExpiry, session.KeyLastActivity, session.SchemaVersionKey} {
		if _, ok := raw[key]; !ok {
			t.Errorf("persisted record missing key %q", key)
		}
	}

	info := svc.SessionInfo(ctx)
	if !info.Authenticated {
		t.Fatal("SessionInfo reports unauthenticated after login")
	}
	if info.Slot != session.SlotAdmin {
		t.Errorf("Slot = %q, want admin", info.Slot)
	}
	if info.SessionRemaining != 24*time.Hour {
		t.Errorf("SessionRemaining = %v, want 24h", info.SessionRemaining)
	}
	if info.SessionRemainingLabel != "24h 0m" {
		t.Errorf("SessionRemainingLabel = %q, want \"24h 0m\"", info.SessionRemainingLabel)
	}
}

func TestLoginCaseInsensitiveEmail(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, _, _ := newTestService(t, dir)

	result := svc.Login(context.Background(), "BETO@Example.org", testLoginSecret, false)
	if !result.Success {
		t.Fatalf("Login with different email case failed: %+v", result)
	}
}

func TestLoginFailures(t *testing.T) {
	inactive := userRecord(t)
	inactive.Principal.Active = false

	tests := []struct {
		name      string
		dir       *staticDirectory
		email     string
		rawSecret string
		wantCode  LoginCode
		wantError string
		retryable bool
	}{
		{
			name:      "unknown email",
			dir:       &staticDirectory{users: []directory.Record{userRecord(t)}},
			email:     "ghost@example.org",
			rawSecret: testLoginSecret,
			wantCode:  LoginFailed,
			wantError: "Usuario no encontrado",
		},
		{
			name:      "inactive account",
			dir:       &staticDirectory{users: []directory.Record{inactive}},
			email:     "beto@example.org",
			rawSecret: testLoginSecret,
			wantCode:  LoginInactive,
			wantError: "Cuenta inactiva",
		},
		{
			name:      "wrong secret",
			dir:       &staticDirectory{users: []directory.Record{userRecord(t)}},
			email:     "beto@example.org",
			rawSecret: "not-the-secret",
			wantCode:  LoginFailed,
			wantError: "Credenciales inválidas",
		},
		{
			name:      "directory unreachable",
			dir:       &staticDirectory{err: directory.ErrUnavailable},
			email:     "beto@example.org",
			rawSecret: testLoginSecret,
			wantCode:  LoginUnavailable,
			wantError: "No se pudo conectar con el servidor. Intenta de nuevo.",
			retryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService(t, tt.dir)

			result := svc.Login(context.Background(), tt.email, tt.rawSecret, false)
			if result.Success {
				t.Fatal("Login unexpectedly succeeded")
			}
			if result.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", result.Code, tt.wantCode)
			}
			if result.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", result.Error, tt.wantError)
			}
			if result.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", result.Retryable, tt.retryable)
			}
			// A failed login never touches the store.
			if raw := store.Raw(session.SlotUser); raw != nil {
				t.Errorf("failed login wrote to store: %v", raw)
			}
		})
	}
}

// blockingDirectory parks lookups until released, to hold a login in flight.
type blockingDirectory struct {
	inFlight chan struct{}
	release  chan struct{}
	users    []directory.Record
}

func (d *blockingDirectory) Admins(context.Context) ([]directory.Record, error) {
	return nil, nil
}

func (d *blockingDirectory) Users(context.Context) ([]directory.Record, error) {
	d.inFlight <- struct{}{}
	<-d.release
	return d.users, nil
}

func TestLoginRejectsOverlappingAttempt(t *testing.T) {
	dir := &blockingDirectory{
		inFlight: make(chan struct{}),
		release:  make(chan struct{}),
		users:    []directory.Record{userRecord(t)},
	}
	svc, _, _ := newTestService(t, dir)
	ctx := context.Background()

	done := make(chan LoginResult, 1)
	go func() {
		done <- svc.Login(ctx, "beto@example.org", testLoginSecret, false)
	}()

	<-dir.inFlight // first login is inside the directory lookup

	second := svc.Login(ctx, "beto@example.org", testLoginSecret, false)
	if second.Code != LoginBusy {
		t.Errorf("second login Code = %q, want login_in_flight", second.Code)
	}
	if second.Error != "Hay un inicio de sesión en curso" {
		t.Errorf("second login Error = %q", second.Error)
	}

	close(dir.release)
	first := <-done
	if !first.Success {
		t.Errorf("first login failed: %+v", first)
	}

	// The guard resets once the first attempt completes.
	go func() {
		done <- svc.Login(ctx, "beto@example.org", testLoginSecret, false)
	}()
	<-dir.inFlight
	third := <-done
	if !third.Success {
		t.Errorf("third login failed: %+v", third)
	}
}

func TestLogoutClearsBothSlots(t *testing.T) {
	dir := &staticDirectory{
		admins: []directory.Record{adminRecord(t)},
		users:  []directory.Record{userRecord(t)},
	}
	svc, store, _ := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("user login failed: %+v", r)
	}
	if r := svc.Login(ctx, "ana@example.org", testLoginSecret, true); !r.Success {
		t.Fatalf("admin login failed: %+v", r)
	}

	var cleared []session.Slot
	unsubscribe := svc.Subscribe(func(e session.Event) {
		if e.Type == session.EventCleared {
			cleared = append(cleared, e.Slot)
		}
	})
	defer unsubscribe()

	svc.Logout(ctx)

	if store.Raw(session.SlotAdmin) != nil || store.Raw(session.SlotUser) != nil {
		t.Error("slots not empty after logout")
	}
	if len(cleared) != 2 {
		t.Errorf("cleared events = %v, want both slots", cleared)
	}
	if svc.IsAuthenticated(ctx) {
		t.Error("still authenticated after logout")
	}

	// Idempotent: a second logout emits nothing and does not fail.
	cleared = nil
	svc.Logout(ctx)
	if len(cleared) != 0 {
		t.Errorf("second logout emitted events: %v", cleared)
	}
}

func TestAbsoluteExpiryClearsSlot(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, store, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	var expired []session.Event
	unsubscribe := svc.Subscribe(func(e session.Event) {
		if e.Type == session.EventExpired {
			expired = append(expired, e)
		}
	})
	defer unsubscribe()

	// Exactly at the deadline the session is still valid.
	clock.Advance(24 * time.Hour)
	if !svc.IsAuthenticated(ctx) {
		t.Fatal("session expired exactly at the deadline")
	}

	clock.Advance(time.Millisecond)
	if svc.IsAuthenticated(ctx) {
		t.Fatal("session still valid past the absolute deadline")
	}
	if store.Raw(session.SlotUser) != nil {
		t.Error("expired slot not cleared from store")
	}
	if len(expired) != 1 || expired[0].Reason != session.ExpiryAbsolute {
		t.Errorf("expired events = %+v, want one absolute expiry", expired)
	}
	if expired[0].Principal == nil || expired[0].Principal.ID != "user-9" {
		t.Errorf("expiry event principal = %+v", expired[0].Principal)
	}
}

func TestIdleExpiry(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, _, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	var reasons []session.ExpiryReason
	unsubscribe := svc.Subscribe(func(e session.Event) {
		if e.Type == session.EventExpired {
			reasons = append(reasons, e.Reason)
		}
	})
	defer unsubscribe()

	clock.Advance(2*time.Hour + time.Millisecond)
	if svc.IsAuthenticated(ctx) {
		t.Fatal("session still valid past the idle limit")
	}
	if len(reasons) != 1 || reasons[0] != session.ExpiryIdle {
		t.Errorf("expiry reasons = %v, want [idle]", reasons)
	}
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, store, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	before := store.Raw(session.SlotUser)[session.KeyLastActivity]

	clock.Advance(90 * time.Minute)
	svc.TouchActivity(ctx)

	after := store.Raw(session.SlotUser)[session.KeyLastActivity]
	if before == after {
		t.Error("touch did not persist a new activity watermark")
	}

	// 3h after login but only 90m after the touch: still inside the limit.
	clock.Advance(90 * time.Minute)
	if !svc.IsAuthenticated(ctx) {
		t.Error("session idled out despite intermediate activity")
	}
}

func TestTouchCannotResurrectExpiredSession(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, store, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	// Well past the idle limit. The touch must detect expiry first.
	clock.Advance(3 * time.Hour)
	svc.TouchActivity(ctx)

	if svc.IsAuthenticated(ctx) {
		t.Error("touch resurrected an idle-expired session")
	}
	if store.Raw(session.SlotUser) != nil {
		t.Error("expired slot survived the touch")
	}
}

func TestAdminPrecedence(t *testing.T) {
	dir := &staticDirectory{
		admins: []directory.Record{adminRecord(t)},
		users:  []directory.Record{userRecord(t)},
	}
	svc, _, _ := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("user login failed: %+v", r)
	}
	if r := svc.Login(ctx, "ana@example.org", testLoginSecret, true); !r.Success {
		t.Fatalf("admin login failed: %+v", r)
	}

	res := svc.Resolve(ctx)
	if res.Slot != session.SlotAdmin {
		t.Errorf("resolved slot = %q, want admin", res.Slot)
	}
	if res.Principal.ID != "admin-1" {
		t.Errorf("resolved principal = %q, want admin-1", res.Principal.ID)
	}
}

func TestAdminExpiryFallsBackToUser(t *testing.T) {
	dir := &staticDirectory{
		admins: []directory.Record{adminRecord(t)},
		users:  []directory.Record{userRecord(t)},
	}
	svc, store, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "ana@example.org", testLoginSecret, true); !r.Success {
		t.Fatalf("admin login failed: %+v", r)
	}

	clock.Advance(time.Hour)
	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("user login failed: %+v", r)
	}

	// 2h30m after the admin login, 1h30m after the user login: the admin
	// slot has idled out but the user slot is still fresh.
	clock.Advance(90 * time.Minute)
	res := svc.Resolve(ctx)
	if res.Slot != session.SlotUser {
		t.Fatalf("resolved slot = %q, want user", res.Slot)
	}
	if store.Raw(session.SlotAdmin) != nil {
		t.Error("expired admin slot not cleared")
	}
}

func TestMisplacedRecordSelfHeals(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, store, clock := newTestService(t, dir)
	ctx := context.Background()

	// An admin-tagged principal stored in the user slot is corruption.
	issuer := token.NewIssuer(testSecret)
	adminP := adminRecord(t).Principal
	tok, err := issuer.Issue(&adminP, clock.Now())
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	record := &session.Record{Token: tok, Principal: adminP}
	record.Clock.Start(clock.Now(), session.DefaultAbsoluteDuration)
	if err := store.Save(ctx, session.SlotUser, record); err != nil {
		t.Fatalf("seeding misplaced record: %v", err)
	}

	if svc.IsAuthenticated(ctx) {
		t.Error("misplaced record resolved as a session")
	}
	if store.Raw(session.SlotUser) != nil {
		t.Error("misplaced record not cleared")
	}
}

func TestCorruptedRecordSelfHeals(t *testing.T) {
	dir := &staticDirectory{}
	svc, store, _ := newTestService(t, dir)
	ctx := context.Background()

	var events []session.Event
	unsubscribe := svc.Subscribe(func(e session.Event) { events = append(events, e) })
	defer unsubscribe()

	// Partial key set: token present, everything else missing.
	store.SetRaw(session.SlotAdmin, map[string]string{
		session.KeyToken: "orphaned-token",
	})

	if svc.IsAuthenticated(ctx) {
		t.Error("partial record resolved as a session")
	}
	if store.Raw(session.SlotAdmin) != nil {
		t.Error("partial record not cleared")
	}
	if len(events) != 1 || events[0].Type != session.EventCleared {
		t.Errorf("events = %+v, want one cleared event", events)
	}
}

func TestTamperedTokenSelfHeals(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, store, _ := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	raw := store.Raw(session.SlotUser)
	raw[session.KeyToken] = raw[session.KeyToken] + "tampered"
	store.SetRaw(session.SlotUser, raw)

	if svc.IsAuthenticated(ctx) {
		t.Error("tampered token resolved as a session")
	}
	if store.Raw(session.SlotUser) != nil {
		t.Error("tampered record not cleared")
	}
}

func TestExtendSessionResetsDeadline(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, _, clock := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	var extended int
	unsubscribe := svc.Subscribe(func(e session.Event) {
		if e.Type == session.EventExtended {
			extended++
		}
	})
	defer unsubscribe()

	clock.Advance(time.Hour)
	if err := svc.ExtendSession(ctx); err != nil {
		t.Fatalf("ExtendSession: %v", err)
	}

	info := svc.SessionInfo(ctx)
	if info.SessionRemaining != 24*time.Hour {
		t.Errorf("SessionRemaining after extend = %v, want 24h", info.SessionRemaining)
	}
	if extended != 1 {
		t.Errorf("extended events = %d, want 1", extended)
	}
}

func TestExtendSessionUnauthenticated(t *testing.T) {
	svc, _, _ := newTestService(t, &staticDirectory{})

	if err := svc.ExtendSession(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("ExtendSession error = %v, want ErrNotAuthenticated", err)
	}
}

func TestSessionInfoUnauthenticated(t *testing.T) {
	svc, _, _ := newTestService(t, &staticDirectory{})

	info := svc.SessionInfo(context.Background())
	if info.Authenticated {
		t.Error("Authenticated = true with no session")
	}
	if info.SessionRemainingLabel != session.ExpiredLabel {
		t.Errorf("SessionRemainingLabel = %q, want Expirado", info.SessionRemainingLabel)
	}
	if info.InactivityRemainingLabel != session.ExpiredLabel {
		t.Errorf("InactivityRemainingLabel = %q, want Expirado", info.InactivityRemainingLabel)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	dir := &staticDirectory{users: []directory.Record{userRecord(t)}}
	svc, _, _ := newTestService(t, dir)
	ctx := context.Background()

	if r := svc.Login(ctx, "beto@example.org", testLoginSecret, false); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	var events int
	unsubscribe := svc.Subscribe(func(session.Event) { events++ })
	defer unsubscribe()

	first := svc.Resolve(ctx)
	second := svc.Resolve(ctx)

	if first.Slot != second.Slot || first.Principal.ID != second.Principal.ID {
		t.Errorf("resolutions differ: %+v vs %+v", first, second)
	}
	if events != 0 {
		t.Errorf("repeated resolves emitted %d events, want 0", events)
	}
}

func TestHasPermission(t *testing.T) {
	dir := &staticDirectory{
		admins: []directory.Record{adminRecord(t)},
	}
	svc, _, _ := newTestService(t, dir)
	ctx := context.Background()

	if svc.HasPermission(ctx, principal.PermViewDashboard) {
		t.Error("unauthenticated caller has permissions")
	}

	if r := svc.Login(ctx, "ana@example.org", testLoginSecret, true); !r.Success {
		t.Fatalf("login failed: %+v", r)
	}

	if !svc.HasPermission(ctx, principal.PermManageBooks) {
		t.Error("admin missing manage_books")
	}
	if svc.HasPermission(ctx, principal.PermManageUsers) {
		t.Error("admin unexpectedly granted manage_users")
	}
}
