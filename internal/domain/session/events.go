package session

import (
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// EventType identifies a session lifecycle transition.
type EventType string

const (
	// EventStarted fires after a successful login writes a fresh record.
	EventStarted EventType = "session_started"
	// EventExtended fires when ExtendSession resets the active clock.
	EventExtended EventType = "session_extended"
	// EventExpired fires when a resolve detects absolute or idle expiry
	// and clears the slot.
	EventExpired EventType = "session_expired"
	// EventCleared fires on explicit logout or self-heal cleanup.
	EventCleared EventType = "session_cleared"
)

// Event describes one lifecycle transition. Subscribers replace the UI
// polling loop the original design relied on: instead of re-resolving on a
// timer and diffing, consumers react to these.
type Event struct {
	Type EventType
	Slot Slot
	// Principal is the affected snapshot when known (nil for blind clears).
	Principal *principal.Principal
	// Reason carries the expiry reason for EventExpired, empty otherwise.
	Reason ExpiryReason
	// At is when the transition was observed.
	At time.Time
}
