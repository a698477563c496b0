// Package persistence wraps a repository.Store with connect, retry and
// reconnect behaviour. The retry Policy is independent of the driver.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"botevents-api/internal/logger"
	"botevents-api/internal/metrics"
	"botevents-api/internal/model"
	"botevents-api/internal/repository"
)

// ErrRetriesExhausted is returned, wrapping the last error, when an operation
// still fails after the policy's final attempt.
var ErrRetriesExhausted = errors.New("storage retries exhausted")

// Gateway decorates a Store with retry and reconnect handling.
type Gateway struct {
	store   repository.Store
	policy  Policy
	connect Policy

	mu         sync.Mutex
	generation uint64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPolicy overrides the per-operation retry policy.
func WithPolicy(p Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithConnectPolicy overrides the initial connection policy.
func WithConnectPolicy(p Policy) Option {
	return func(g *Gateway) { g.connect = p }
}

// NewGateway wraps store.
func NewGateway(store repository.Store, opts ...Option) *Gateway {
	g := &Gateway{
		store:   store,
		policy:  DefaultPolicy(),
		connect: ConnectPolicy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// linearBackOff adapts a Policy backoff function to backoff.BackOff.
type linearBackOff struct {
	fn      func(int) time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.fn(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{fn: p.Backoff}, uint64(max-1)),
		ctx,
	)
}

// Connect opens the store, retrying per the connect policy.
func (g *Gateway) Connect(ctx context.Context) error {
	log := logger.FromContext(ctx)
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++
		err := g.store.Connect(ctx)
		if err != nil && g.connect.Classify(err) == Permanent {
			return backoff.Permanent(err)
		}
		return err
	}, g.connect.backOff(ctx), func(err error, wait time.Duration) {
		log.Warn("[Persistence] Connect failed, retrying", "attempt", attempts, "max_attempts", g.connect.MaxAttempts, "wait", wait, "error", err)
	})
	if err != nil {
		return fmt.Errorf("%w: connect after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}

	log.Info("[Persistence] Connected", "attempts", attempts)
	return nil
}

// Do runs fn under the retry policy. op names the operation in logs and metrics.
func (g *Gateway) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)

	var (
		attempts  int
		permanent bool
		stale     bool
		staleGen  uint64
	)

	operation := func() error {
		attempts++
		if stale {
			if err := g.reconnect(ctx, staleGen); err != nil {
				return err
			}
			stale = false
		}

		gen := g.currentGeneration()
		err := fn(ctx)
		if err == nil {
			return nil
		}

		switch class := g.policy.Classify(err); class {
		case Permanent:
			permanent = true
			return backoff.Permanent(err)
		case ConnectionClosed:
			stale, staleGen = true, gen
			metrics.StoreRetries.WithLabelValues(op, class.String()).Inc()
		default:
			metrics.StoreRetries.WithLabelValues(op, class.String()).Inc()
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("[Persistence] Operation failed, retrying",
			"op", op, "attempt", attempts, "max_attempts", g.policy.MaxAttempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, g.policy.backOff(ctx), notify)
	switch {
	case err == nil:
		return nil
	case permanent, ctx.Err() != nil:
		return err
	}

	log.Error("[Persistence] Operation failed after retries", "op", op, "attempts", attempts, "error", err)
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, op, attempts, err)
}

// Call runs fn under g's retry policy and returns its value.
func Call[T any](ctx context.Context, g *Gateway, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := g.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

func (g *Gateway) currentGeneration() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

// reconnect reopens the store unless another caller already did so since gen.
func (g *Gateway) reconnect(ctx context.Context, gen uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != gen {
		return nil
	}
	if err := g.store.Reconnect(ctx); err != nil {
		logger.FromContext(ctx).Warn("[Persistence] Reconnect failed", "error", err)
		return err
	}
	g.generation++
	metrics.StoreReconnects.Inc()
	logger.FromContext(ctx).Info("[Persistence] Reconnected", "generation", g.generation)
	return nil
}

// Reconnect forces the store to reopen its connection.
func (g *Gateway) Reconnect(ctx context.Context) error {
	return g.reconnect(ctx, g.currentGeneration())
}

// Migrate applies schema migrations with retry.
func (g *Gateway) Migrate(ctx context.Context) error {
	return g.Do(ctx, "migrate", g.store.Migrate)
}

// Close closes the underlying store.
func (g *Gateway) Close() error {
	return g.store.Close()
}

// FindUser implements repository.InventoryStore.
func (g *Gateway) FindUser(ctx context.Context, username string) (*model.User, error) {
	return Call(ctx, g, "find_user", func(ctx context.Context) (*model.User, error) {
		return g.store.FindUser(ctx, username)
	})
}

// ClaimWithdrawingItems implements repository.InventoryStore.
func (g *Gateway) ClaimWithdrawingItems(ctx context.Context, username string, botID int64) ([]model.InventoryItem, error) {
	return Call(ctx, g, "claim_withdrawing", func(ctx context.Context) ([]model.InventoryItem, error) {
		return g.store.ClaimWithdrawingItems(ctx, username, botID)
	})
}

// FindCatalogEntries implements repository.InventoryStore.
func (g *Gateway) FindCatalogEntries(ctx context.Context, inGameNames []string) ([]model.CatalogEntry, error) {
	return Call(ctx, g, "find_catalog", func(ctx context.Context) ([]model.CatalogEntry, error) {
		return g.store.FindCatalogEntries(ctx, inGameNames)
	})
}

// InsertItems implements repository.InventoryStore.
func (g *Gateway) InsertItems(ctx context.Context, items []model.InventoryItem) (int64, error) {
	return Call(ctx, g, "insert_items", func(ctx context.Context) (int64, error) {
		return g.store.InsertItems(ctx, items)
	})
}

// DeleteOwnedItems implements repository.InventoryStore.
func (g *Gateway) DeleteOwnedItems(ctx context.Context, username string, botID int64, itemInGameIDs []string) ([]model.InventoryItem, error) {
	return Call(ctx, g, "delete_items", func(ctx context.Context) ([]model.InventoryItem, error) {
		return g.store.DeleteOwnedItems(ctx, username, botID, itemInGameIDs)
	})
}

// ReleaseWithdrawClaims implements repository.InventoryStore.
func (g *Gateway) ReleaseWithdrawClaims(ctx context.Context, username string, botID int64) (int64, error) {
	return Call(ctx, g, "release_claims", func(ctx context.Context) (int64, error) {
		return g.store.ReleaseWithdrawClaims(ctx, username, botID)
	})
}

// GetStats implements repository.InventoryStore.
func (g *Gateway) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return Call(ctx, g, "stats", g.store.GetStats)
}

// Ping checks the store once, without retry.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

var _ repository.Store = (*Gateway)(nil)
