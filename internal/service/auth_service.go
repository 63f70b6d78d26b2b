package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miradorhq/sessiond/internal/adapter/outbound/directory"
	"github.com/miradorhq/sessiond/internal/domain/principal"
	"github.com/miradorhq/sessiond/internal/domain/secret"
	"github.com/miradorhq/sessiond/internal/domain/session"
	"github.com/miradorhq/sessiond/internal/domain/token"
)

// DefaultRevalidateInterval is how often the background revalidation loop
// re-runs the resolver so expiry fires even when nothing else calls in.
const DefaultRevalidateInterval = 5 * time.Minute

// Config holds auth service configuration.
type Config struct {
	// AbsoluteDuration is the fixed session lifetime. Default: 24h.
	AbsoluteDuration time.Duration
	// IdleDuration is the inactivity limit. Default: 2h.
	IdleDuration time.Duration
	// RevalidateInterval is the forced re-validation period. Default: 5m.
	RevalidateInterval time.Duration
}

// AuthService is the facade consumed by route guards and the HTTP surface.
// It owns the session lifecycle for both identity slots: login, logout,
// resolution, extension, expiry detection, and lifecycle events.
//
// It is constructed once at application start and passed by reference to
// every consumer; Close releases its timers.
type AuthService struct {
	store  session.Store
	dir    directory.Directory
	issuer *token.Issuer
	logger *slog.Logger

	absolute   time.Duration
	idle       time.Duration
	revalidate time.Duration

	// now is injectable for deterministic expiry tests.
	now func() time.Time

	// mu serializes every store-mutating state transition. The store itself
	// is last-write-wins; this lock keeps resolve-then-write sequences from
	// interleaving.
	mu       sync.Mutex
	resolver *identityResolver

	// loginInFlight rejects overlapping Login calls (e.g. a double-click)
	// before any directory lookup starts.
	loginInFlight atomic.Bool

	subMu  sync.Mutex
	subs   map[int]func(session.Event)
	nextID int

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Option is a functional option for configuring AuthService.
type Option func(*AuthService)

// WithNowFunc overrides the time source. Tests use this to simulate the
// passage of hours without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(s *AuthService) {
		s.now = now
	}
}

// New creates the auth service. Zero config fields fall back to defaults.
func New(store session.Store, dir directory.Directory, issuer *token.Issuer, cfg Config, logger *slog.Logger, opts ...Option) *AuthService {
	absolute := cfg.AbsoluteDuration
	if absolute == 0 {
		absolute = session.DefaultAbsoluteDuration
	}
	idle := cfg.IdleDuration
	if idle == 0 {
		idle = session.DefaultIdleDuration
	}
	revalidate := cfg.RevalidateInterval
	if revalidate == 0 {
		revalidate = DefaultRevalidateInterval
	}

	s := &AuthService{
		store:      store,
		dir:        dir,
		issuer:     issuer,
		logger:     logger,
		absolute:   absolute,
		idle:       idle,
		revalidate: revalidate,
		now:        func() time.Time { return time.Now().UTC() },
		subs:       make(map[int]func(session.Event)),
		stopChan:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.resolver = &identityResolver{
		store:  store,
		issuer: issuer,
		idle:   idle,
		logger: logger,
		emit:   s.emit,
	}

	return s
}

// Subscribe registers a lifecycle event callback and returns its
// unsubscribe function. Callbacks run synchronously on the goroutine that
// triggered the transition and must not block or call back into the service.
func (s *AuthService) Subscribe(fn func(session.Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *AuthService) emit(event session.Event) {
	s.subMu.Lock()
	callbacks := make([]func(session.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		callbacks = append(callbacks, fn)
	}
	s.subMu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

// Login authenticates an identifier against the appropriate directory and,
// on success, starts a fresh session in that identity's slot (overwriting
// any existing record there). The credential store is not touched until the
// directory lookup has resolved.
func (s *AuthService) Login(ctx context.Context, identifier, rawSecret string, asAdmin bool) LoginResult {
	if !s.loginInFlight.CompareAndSwap(false, true) {
		return LoginResult{Success: false, Code: LoginBusy, Error: msgLoginBusy}
	}
	defer s.loginInFlight.Store(false)

	var (
		records []directory.Record
		err     error
	)
	if asAdmin {
		records, err = s.dir.Admins(ctx)
	} else {
		records, err = s.dir.Users(ctx)
	}
	if err != nil {
		s.logger.Warn("directory lookup failed", "as_admin", asAdmin, "error", err)
		return LoginResult{
			Success:   false,
			Code:      LoginUnavailable,
			Error:     msgConnectionError,
			Retryable: errors.Is(err, directory.ErrUnavailable),
		}
	}

	match := directory.FindByEmail(records, identifier)
	if match == nil {
		return LoginResult{Success: false, Code: LoginFailed, Error: msgUserNotFound}
	}
	if !match.Principal.Active {
		return LoginResult{Success: false, Code: LoginInactive, Error: msgInactiveAccount}
	}

	ok, err := secret.Verify(rawSecret, match.SecretHash)
	if err != nil {
		s.logger.Warn("secret verification failed", "principal_id", match.Principal.ID, "error", err)
		return LoginResult{Success: false, Code: LoginFailed, Error: msgInvalidCredentials}
	}
	if !ok {
		return LoginResult{Success: false, Code: LoginFailed, Error: msgInvalidCredentials}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	tok, err := s.issuer.Issue(&match.Principal, now)
	if err != nil {
		// Unreachable after boundary validation, but never thrown upward.
		s.logger.Error("token issuance failed", "principal_id", match.Principal.ID, "error", err)
		return LoginResult{Success: false, Code: LoginFailed, Error: msgInvalidCredentials}
	}

	record := &session.Record{
		Token:     tok,
		Principal: match.Principal,
	}
	record.Clock.Start(now, s.absolute)

	slot := session.SlotUser
	if asAdmin {
		slot = session.SlotAdmin
	}
	if err := s.store.Save(ctx, slot, record); err != nil {
		s.logger.Error("failed to persist session", "slot", slot, "error", err)
		return LoginResult{
			Success:   false,
			Code:      LoginUnavailable,
			Error:     msgConnectionError,
			Retryable: true,
		}
	}

	p := match.Principal
	s.emit(session.Event{Type: session.EventStarted, Slot: slot, Principal: &p, At: now})
	s.logger.Info("session started", "slot", slot, "principal_id", p.ID, "role", p.Role)

	return LoginResult{Success: true, Code: LoginOK, Principal: &p}
}

// Logout unconditionally clears both slots. Idempotent: safe to call when
// already logged out.
func (s *AuthService) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, slot := range session.Slots() {
		record, err := s.store.Load(ctx, slot)
		hadRecord := err != nil || record != nil
		if clearErr := s.store.Clear(ctx, slot); clearErr != nil {
			s.logger.Error("failed to clear slot on logout", "slot", slot, "error", clearErr)
			continue
		}
		if !hadRecord {
			continue
		}
		event := session.Event{Type: session.EventCleared, Slot: slot, At: now}
		if record != nil && record.Principal.ID != "" {
			p := record.Principal
			event.Principal = &p
		}
		s.emit(event)
	}
	s.logger.Info("logged out, both slots cleared")
}

// Resolve runs the identity resolver: which slot, if any, is active right
// now. Expired or invalid records encountered are cleared as a side effect.
func (s *AuthService) Resolve(ctx context.Context) Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, changed := s.resolver.resolve(ctx, s.now())
	if changed {
		s.logger.Debug("resolution changed", "slot", res.Slot)
	}
	return res
}

// IsAuthenticated reports whether any slot currently resolves. Detected
// expiry flips this to false and clears the slot in the same call.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	return s.Resolve(ctx).Authenticated()
}

// CurrentPrincipal returns the active principal snapshot, or nil.
func (s *AuthService) CurrentPrincipal(ctx context.Context) *principal.Principal {
	return s.Resolve(ctx).Principal
}

// HasPermission reports whether the active principal's role covers the
// permission. False when unauthenticated.
func (s *AuthService) HasPermission(ctx context.Context, permission string) bool {
	p := s.Resolve(ctx).Principal
	return p != nil && p.HasPermission(permission)
}

// ExtendSession resets the active slot's clock: a fresh absolute deadline
// and activity watermark, as if the session had just started.
// Returns ErrNotAuthenticated when no slot resolves.
func (s *AuthService) ExtendSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	res, _ := s.resolver.resolve(ctx, now)
	if !res.Authenticated() {
		return ErrNotAuthenticated
	}

	res.Record.Clock.Extend(now, s.absolute)
	if err := s.store.Save(ctx, res.Slot, res.Record); err != nil {
		return err
	}

	s.emit(session.Event{Type: session.EventExtended, Slot: res.Slot, Principal: res.Principal, At: now})
	s.logger.Info("session extended", "slot", res.Slot, "principal_id", res.Principal.ID)
	return nil
}

// SessionInfo returns the countdown snapshot for display. Remaining values
// floor at zero; labels render "Expirado" once a countdown is exhausted.
func (s *AuthService) SessionInfo(ctx context.Context) session.Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	res, _ := s.resolver.resolve(ctx, now)
	if !res.Authenticated() {
		return session.Info{
			SessionRemainingLabel:    session.ExpiredLabel,
			InactivityRemainingLabel: session.ExpiredLabel,
		}
	}

	sessionRemaining := res.Record.Clock.SessionRemaining(now)
	inactivityRemaining := res.Record.Clock.InactivityRemaining(now, s.idle)

	return session.Info{
		Authenticated:            true,
		Slot:                     res.Slot,
		Principal:                res.Principal,
		SessionRemaining:         sessionRemaining,
		InactivityRemaining:      inactivityRemaining,
		SessionRemainingLabel:    session.FormatRemaining(sessionRemaining),
		InactivityRemainingLabel: session.FormatRemaining(inactivityRemaining),
	}
}

// TouchActivity records an observed interaction: if a session currently
// resolves, its activity watermark advances and is persisted. Expiry is
// checked first (inside resolve), so a touch can never resurrect a session
// that already idled out.
func (s *AuthService) TouchActivity(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	res, _ := s.resolver.resolve(ctx, now)
	if !res.Authenticated() {
		return
	}

	res.Record.Clock.Touch(now)
	if err := s.store.TouchActivity(ctx, res.Slot, res.Record.Clock.LastActivity); err != nil {
		s.logger.Error("failed to persist activity", "slot", res.Slot, "error", err)
	}
}

// StartRevalidation launches the background loop that re-runs the resolver
// every RevalidateInterval, forcing expiry (and its events) to fire even
// when no caller is checking. Call Close to stop it.
func (s *AuthService) StartRevalidation(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.revalidate)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Resolve(ctx)
			}
		}
	}()
}

// Close stops the revalidation loop and waits for it to exit.
// Safe to call multiple times.
func (s *AuthService) Close() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
