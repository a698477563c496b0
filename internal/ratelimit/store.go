package ratelimit

import (
	"context"
	"time"

	"botevents-api/internal/model"
)

// Store holds per-origin authentication failure records.
// Implementations must make Increment and Observe atomic per origin.
type Store interface {
	// Observe returns the record for origin at now. A lockout that has
	// expired is deleted and reported as a zero record.
	Observe(ctx context.Context, origin string, now time.Time) (model.AuthAttemptRecord, error)

	// Increment adds one failure for origin and starts a lockout of the given
	// length once the count reaches threshold. An expired lockout is reset first.
	Increment(ctx context.Context, origin string, now time.Time, threshold int, lockout time.Duration) (model.AuthAttemptRecord, error)

	// Delete removes the record for origin.
	Delete(ctx context.Context, origin string) error

	// Len returns the number of tracked origins.
	Len(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
