// Package migrations embeds the schema for every supported store dialect and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql mysql/*.sql
var files embed.FS

var dialects = map[string]goose.Dialect{
	"postgres": goose.DialectPostgres,
	"sqlite":   goose.DialectSQLite3,
	"mysql":    goose.DialectMySQL,
}

// FS returns the migration files for a dialect.
func FS(dialect string) (fs.FS, error) {
	if _, ok := dialects[dialect]; !ok {
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	return fs.Sub(files, dialect)
}

// Up applies all pending migrations for dialect to db.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	fsys, err := FS(dialect)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialects[dialect], db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	for _, r := range results {
		slog.Default().Info("Applied migration", "dialect", dialect, "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}
