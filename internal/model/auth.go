package model

import "time"

// AuthAttemptRecord tracks authentication failures for one origin.
type AuthAttemptRecord struct {
	Count        int       `json:"count"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Blocked reports whether the record holds an active lockout at now.
func (r AuthAttemptRecord) Blocked(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && r.BlockedUntil.After(now)
}

// Expired reports whether a lockout was set and has passed.
func (r AuthAttemptRecord) Expired(now time.Time) bool {
	return !r.BlockedUntil.IsZero() && !r.BlockedUntil.After(now)
}
