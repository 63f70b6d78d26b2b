package session

import "time"

// Default durations for session expiration.
const (
	// DefaultAbsoluteDuration is the fixed wall-clock session lifetime.
	DefaultAbsoluteDuration = 24 * time.Hour
	// DefaultIdleDuration is the maximum gap between observed interactions.
	DefaultIdleDuration = 2 * time.Hour
)

// Clock holds the two timestamps that govern a session's validity: a fixed
// absolute deadline set at issuance, and a last-activity watermark that only
// ever moves forward. Expiry on both axes is strict: a check made exactly at
// the deadline is still valid.
type Clock struct {
	// AbsoluteExpiry is the wall-clock deadline. It never advances except
	// via Extend.
	AbsoluteExpiry time.Time
	// LastActivity is the most recent observed interaction. Monotonically
	// non-decreasing.
	LastActivity time.Time
}

// Start initializes both timestamps for a fresh session.
func (c *Clock) Start(now time.Time, absoluteDuration time.Duration) {
	c.AbsoluteExpiry = now.Add(absoluteDuration)
	c.LastActivity = now
}

// Touch advances LastActivity. Earlier timestamps are ignored so the
// watermark never moves backwards (e.g. a stale heartbeat racing a fresher
// interaction signal).
func (c *Clock) Touch(now time.Time) {
	if now.After(c.LastActivity) {
		c.LastActivity = now
	}
}

// Extend resets both timestamps, equivalent to Start.
func (c *Clock) Extend(now time.Time, absoluteDuration time.Duration) {
	c.Start(now, absoluteDuration)
}

// AbsoluteExpired reports whether the fixed deadline has passed.
// Strictly after: exactly at the deadline is still valid.
func (c *Clock) AbsoluteExpired(now time.Time) bool {
	return now.After(c.AbsoluteExpiry)
}

// IdleExpired reports whether the gap since the last interaction exceeds
// the idle duration. Strictly greater: exactly at the limit is still valid.
func (c *Clock) IdleExpired(now time.Time, idleDuration time.Duration) bool {
	return now.Sub(c.LastActivity) > idleDuration
}

// SessionRemaining returns the time left until absolute expiry, floored at zero.
func (c *Clock) SessionRemaining(now time.Time) time.Duration {
	remaining := c.AbsoluteExpiry.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InactivityRemaining returns the time left until idle expiry, floored at zero.
func (c *Clock) InactivityRemaining(now time.Time, idleDuration time.Duration) time.Duration {
	remaining := idleDuration - now.Sub(c.LastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}
