package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	s := NewSQLStore(SQLite, SQLConfig{DSN: filepath.Join(t.TempDir(), "inventory.db")})
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestSQLStore_SQLite(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Seed(context.Background(), testFixtures()))
	exerciseStore(t, s)
}

func TestSQLStore_SeedIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, testFixtures()))
	require.NoError(t, s.Seed(ctx, testFixtures()))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats["total_items"])
}

func TestSQLStore_NotConnected(t *testing.T) {
	s := NewSQLStore(SQLite, SQLConfig{DSN: filepath.Join(t.TempDir(), "x.db")})
	ctx := context.Background()

	_, err := s.FindUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.Ping(ctx), ErrNotConnected)
	assert.NoError(t, s.Close())
}

func TestSQLStore_Reconnect(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, testFixtures()))

	require.NoError(t, s.Reconnect(ctx))

	u, err := s.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)
}

func TestSQLStore_EmptyInputs(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	n, err := s.InsertItems(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := s.FindCatalogEntries(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	deleted, err := s.DeleteOwnedItems(ctx, "Alice", eligibleBot, nil)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		driver  string
		want    interface{}
		wantErr bool
	}{
		{driver: "postgres", want: &PostgresStore{}},
		{driver: "sqlite", want: &SQLStore{}},
		{driver: "mysql", want: &SQLStore{}},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := NewStore(StoreConfig{Driver: tt.driver, URL: "x"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestSQLStore_CreatesSQLiteDirectory(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(SQLite, SQLConfig{DSN: filepath.Join(t.TempDir(), "nested", "dir", "inventory.db")})
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { _ = s.Close() })
	assert.NoError(t, s.Ping(ctx))
}
