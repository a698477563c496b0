// Package ratelimit blocks origins that repeatedly fail authentication.
//
// A failure counter is kept per origin. Once it reaches the threshold the
// origin is locked out for a fixed duration; the record is reset lazily the
// next time it is observed after the lockout has passed. Successful requests
// never reset the counter.
package ratelimit

import (
	"context"
	"time"

	"botevents-api/internal/logger"
	"botevents-api/internal/metrics"
)

const (
	DefaultThreshold = 3
	DefaultLockout   = 30 * time.Minute
)

// Limiter decides whether an origin is locked out.
type Limiter struct {
	store     Store
	threshold int
	lockout   time.Duration
	now       func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithThreshold sets the number of failures that triggers a lockout.
func WithThreshold(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.threshold = n
		}
	}
}

// WithLockout sets the lockout duration.
func WithLockout(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.lockout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter backed by store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:     store,
		threshold: DefaultThreshold,
		lockout:   DefaultLockout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsBlocked reports whether origin is locked out and for how much longer.
func (l *Limiter) IsBlocked(ctx context.Context, origin string) (bool, time.Duration, error) {
	now := l.now()
	rec, err := l.store.Observe(ctx, origin, now)
	if err != nil {
		return false, 0, err
	}
	if !rec.Blocked(now) {
		return false, 0, nil
	}
	return true, rec.BlockedUntil.Sub(now), nil
}

// RecordFailure counts one authentication failure for origin.
func (l *Limiter) RecordFailure(ctx context.Context, origin string) error {
	now := l.now()
	rec, err := l.store.Increment(ctx, origin, now, l.threshold, l.lockout)
	if err != nil {
		return err
	}
	if rec.Count == l.threshold && rec.Blocked(now) {
		metrics.Lockouts.Inc()
		logger.FromContext(ctx).Warn("[RateLimiter] Origin locked out",
			"origin", origin, "failures", rec.Count, "until", rec.BlockedUntil)
	}
	return nil
}

// Reset clears the record for origin.
func (l *Limiter) Reset(ctx context.Context, origin string) error {
	return l.store.Delete(ctx, origin)
}

// Tracked returns the number of origins with a record.
func (l *Limiter) Tracked(ctx context.Context) (int, error) {
	return l.store.Len(ctx)
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
