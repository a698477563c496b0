package repository

import (
	"context"
	"fmt"
	"time"
)

// StoreConfig selects and configures a driver store.
type StoreConfig struct {
	Driver       string // postgres, sqlite or mysql
	URL          string
	MaxOpenConns int
	MinConns     int
	MaxConnLife  time.Duration
	MaxConnIdle  time.Duration
}

// Seeder loads fixtures into a store.
type Seeder interface {
	Seed(ctx context.Context, f Fixtures) error
}

// NewStore returns an unconnected store for cfg.Driver.
func NewStore(cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "postgresql":
		return NewPostgresStore(PostgresConfig{
			URL:         cfg.URL,
			MaxConns:    int32(cfg.MaxOpenConns),
			MinConns:    int32(cfg.MinConns),
			MaxConnLife: cfg.MaxConnLife,
			MaxConnIdle: cfg.MaxConnIdle,
		}), nil
	case "sqlite":
		return NewSQLStore(SQLite, SQLConfig{DSN: cfg.URL, MaxConnLife: cfg.MaxConnLife}), nil
	case "mysql":
		return NewSQLStore(MySQL, SQLConfig{
			DSN:          cfg.URL,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MinConns,
			MaxConnLife:  cfg.MaxConnLife,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

var (
	_ Seeder = (*PostgresStore)(nil)
	_ Seeder = (*SQLStore)(nil)
)
