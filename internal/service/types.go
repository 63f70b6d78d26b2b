// Package service contains the application services for the dual-identity
// session lifecycle: the auth facade, the identity resolver, and the
// activity tracker.
package service

import (
	"errors"

	"github.com/miradorhq/sessiond/internal/domain/principal"
	"github.com/miradorhq/sessiond/internal/domain/session"
)

// ErrNotAuthenticated is returned by operations that require an active
// session (e.g. ExtendSession) when neither slot resolves.
var ErrNotAuthenticated = errors.New("not authenticated")

// LoginCode classifies a login outcome.
type LoginCode string

const (
	// LoginOK is a successful login.
	LoginOK LoginCode = "ok"
	// LoginFailed covers unknown identifier and bad secret.
	LoginFailed LoginCode = "authentication_failed"
	// LoginInactive means the directory account is disabled.
	LoginInactive LoginCode = "inactive_account"
	// LoginUnavailable means the directory could not be reached; retryable.
	LoginUnavailable LoginCode = "connection_error"
	// LoginBusy means another login is in flight; rejected, not queued.
	LoginBusy LoginCode = "login_in_flight"
)

// User-facing login messages. The product surface is Spanish.
const (
	msgUserNotFound       = "Usuario no encontrado"
	msgInactiveAccount    = "Cuenta inactiva"
	msgInvalidCredentials = "Credenciales inválidas"
	msgConnectionError    = "No se pudo conectar con el servidor. Intenta de nuevo."
	msgLoginBusy          = "Hay un inicio de sesión en curso"
)

// LoginResult is the structured outcome of Login. Failures are always
// returned as a result, never raised past the facade boundary.
type LoginResult struct {
	Success   bool
	Principal *principal.Principal
	Code      LoginCode
	// Error is the user-facing message when Success is false.
	Error string
	// Retryable suggests the caller may retry (directory unreachable).
	Retryable bool
}

// Resolution is the identity resolver's answer: which slot (if any) is
// currently active and its principal snapshot.
type Resolution struct {
	// Slot is SlotAdmin or SlotUser, or empty when no session is active.
	Slot      session.Slot
	Principal *principal.Principal
	Record    *session.Record
}

// Authenticated reports whether any slot resolved.
func (r Resolution) Authenticated() bool {
	return r.Slot != ""
}
