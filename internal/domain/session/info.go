package session

import (
	"fmt"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// ExpiredLabel is the user-facing label for an exhausted countdown.
// The product surface is Spanish; labels are part of observable behavior.
const ExpiredLabel = "Expirado"

// Info is the snapshot returned by the facade's SessionInfo for display
// in headers and session-timeout dialogs.
type Info struct {
	Authenticated bool
	Slot          Slot
	Principal     *principal.Principal

	// SessionRemaining is the time until absolute expiry, floored at zero.
	SessionRemaining time.Duration
	// InactivityRemaining is the time until idle expiry, floored at zero.
	InactivityRemaining time.Duration

	// SessionRemainingLabel and InactivityRemainingLabel are the formatted
	// countdowns ("3h 12m", "45m 10s", "8s", or "Expirado").
	SessionRemainingLabel    string
	InactivityRemainingLabel string
}

// FormatRemaining renders a countdown for display. Zero or negative renders
// as ExpiredLabel; otherwise the two most significant units are shown.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return ExpiredLabel
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
