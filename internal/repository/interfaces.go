package repository

import (
	"context"
	"errors"

	"botevents-api/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotConnected is returned when a store is used before Connect or after Close.
	ErrNotConnected = errors.New("store is not connected")
)

// InventoryStore defines inventory ledger data access methods.
// Every method is atomic on its own.
type InventoryStore interface {
	// FindUser finds a user by case-insensitive username. Returns ErrNotFound if absent.
	FindUser(ctx context.Context, username string) (*model.User, error)

	// ClaimWithdrawingItems marks the user's unclaimed WITHDRAWING items held by an
	// eligible bot as WITHDRAW_ACCEPTED and returns them, in one operation.
	ClaimWithdrawingItems(ctx context.Context, username string, botID int64) ([]model.InventoryItem, error)

	// FindCatalogEntries resolves catalog entries by in-game name in one lookup.
	FindCatalogEntries(ctx context.Context, inGameNames []string) ([]model.CatalogEntry, error)

	// InsertItems inserts items in one transaction, skipping natural-key duplicates.
	// Returns the number of rows created.
	InsertItems(ctx context.Context, items []model.InventoryItem) (int64, error)

	// DeleteOwnedItems deletes the subset of itemInGameIDs owned by username+botID
	// and returns the deleted items.
	DeleteOwnedItems(ctx context.Context, username string, botID int64, itemInGameIDs []string) ([]model.InventoryItem, error)

	// ReleaseWithdrawClaims resets the trade status of WITHDRAWING items to NONE.
	ReleaseWithdrawClaims(ctx context.Context, username string, botID int64) (int64, error)

	// GetStats returns statistics about the inventory database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Store is an InventoryStore whose connection lifecycle can be driven from outside.
type Store interface {
	InventoryStore

	// Connect opens the underlying connection pool.
	Connect(ctx context.Context) error

	// Reconnect drops the current pool and opens a fresh one.
	Reconnect(ctx context.Context) error

	// Migrate applies pending schema migrations.
	Migrate(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}

// EventLogRepository defines event audit log storage.
type EventLogRepository interface {
	InsertEventLog(ctx context.Context, entry *model.EventLog) error
	GetEventLogs(ctx context.Context, limit, offset int) ([]model.EventLog, int64, error)
	Close() error
}
