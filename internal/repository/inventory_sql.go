package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required

	"botevents-api/internal/logger"
	"botevents-api/internal/migrations"
	"botevents-api/internal/model"
)

// Dialect captures the SQL differences between the database/sql backends.
type Dialect struct {
	Name         string
	insertIgnore string
	forUpdate    string
	sizeQuery    string
}

var (
	// SQLite is the embedded single-writer backend.
	SQLite = Dialect{
		Name:         "sqlite",
		insertIgnore: "INSERT OR IGNORE",
		sizeQuery:    "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	}

	// MySQL locks claimed rows with SELECT ... FOR UPDATE.
	MySQL = Dialect{
		Name:         "mysql",
		insertIgnore: "INSERT IGNORE",
		forUpdate:    " FOR UPDATE",
		sizeQuery: `SELECT COALESCE(SUM(data_length + index_length), 0)
			FROM information_schema.tables WHERE table_schema = DATABASE()`,
	}
)

// SQLConfig holds settings for SQLStore.
type SQLConfig struct {
	// DSN is a file path for SQLite or a go-sql-driver DSN for MySQL.
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxConnLife  time.Duration
}

// SQLStore implements Store on database/sql for SQLite and MySQL.
// Multi-statement operations run in a transaction; MySQL rows are locked
// FOR UPDATE and SQLite is limited to a single connection.
type SQLStore struct {
	dialect Dialect
	cfg     SQLConfig

	mu  sync.RWMutex
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates an unconnected store for the given dialect.
func NewSQLStore(dialect Dialect, cfg SQLConfig) *SQLStore {
	return &SQLStore{dialect: dialect, cfg: cfg, now: time.Now}
}

// Connect opens and pings the database.
func (s *SQLStore) Connect(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s: %w", s.dialect.Name, err)
	}

	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	logger.FromContext(ctx).Info("[SQLStore] Connected", "dialect", s.dialect.Name)
	return nil
}

func (s *SQLStore) open() (*sql.DB, error) {
	switch s.dialect.Name {
	case SQLite.Name:
		dsn := s.cfg.DSN
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		// SQLite only supports 1 writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return db, nil

	case MySQL.Name:
		mcfg, err := mysql.ParseDSN(s.cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
		}
		mcfg.MultiStatements = true
		connector, err := mysql.NewConnector(mcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL: %w", err)
		}
		db := sql.OpenDB(connector)
		if s.cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(s.cfg.MaxOpenConns)
		}
		if s.cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(s.cfg.MaxIdleConns)
		}
		if s.cfg.MaxConnLife > 0 {
			db.SetConnMaxLifetime(s.cfg.MaxConnLife)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", s.dialect.Name)
}

// Reconnect closes the current handle and opens a new one.
func (s *SQLStore) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	old := s.db
	s.db = nil
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return s.Connect(ctx)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	return migrations.Up(ctx, db, s.dialect.Name)
}

func (s *SQLStore) acquire() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotConnected
	}
	return s.db, nil
}

// FindUser finds a user by case-insensitive username.
func (s *SQLStore) FindUser(ctx context.Context, username string) (*model.User, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}

	var u model.User
	err = db.QueryRowContext(ctx, `SELECT username FROM users WHERE LOWER(username) = LOWER(?) LIMIT 1`, username).Scan(&u.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &u, nil
}

const sqlItemColumns = `ui.id, ui.user_username, ui.owner_bot_id, ui.catalog_id, c.name, c.in_game_name,
	ui.value, ui.variant, ui.state, ui.bot_trade_status, ui.item_in_game_id, ui.created_at, ui.updated_at`

// ClaimWithdrawingItems selects and marks eligible items in one transaction.
func (s *SQLStore) ClaimWithdrawingItems(ctx context.Context, username string, botID int64) ([]model.InventoryItem, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + sqlItemColumns + `
		FROM user_inventory ui
		JOIN bots b ON ui.owner_bot_id = b.id
		JOIN catalog_entries c ON ui.catalog_id = c.id
		WHERE ui.user_username = ?
			AND ui.owner_bot_id = ?
			AND ui.state = ?
			AND ui.bot_trade_status = ?
			AND b.banned = 0
			AND b.active = 1
			AND b.can_join = 1` + s.dialect.forUpdate

	rows, err := tx.QueryContext(ctx, query, username, botID,
		string(model.ItemStateWithdrawing), string(model.TradeStatusNone))
	if err != nil {
		return nil, fmt.Errorf("failed to select withdrawing items: %w", err)
	}
	items, err := collectSQLItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, tx.Commit()
	}

	now := s.now().UTC()
	ids := make([]any, 0, len(items)+2)
	ids = append(ids, string(model.TradeStatusWithdrawAccepted), toMillis(now))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE user_inventory SET bot_trade_status = ?, updated_at = ? WHERE id IN (`+placeholders(len(items))+`)`,
		ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to claim withdrawing items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i := range items {
		items[i].TradeStatus = model.TradeStatusWithdrawAccepted
		items[i].UpdatedAt = fromMillis(toMillis(now))
	}
	return items, nil
}

// FindCatalogEntries resolves all in-game names with a single IN lookup.
func (s *SQLStore) FindCatalogEntries(ctx context.Context, inGameNames []string) ([]model.CatalogEntry, error) {
	if len(inGameNames) == 0 {
		return []model.CatalogEntry{}, nil
	}
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+catalogColumns+` FROM catalog_entries WHERE in_game_name IN (`+placeholders(len(inGameNames))+`)`,
		stringArgs(inGameNames)...)
	if err != nil {
		return nil, fmt.Errorf("failed to find catalog entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.CatalogEntry, 0, len(inGameNames))
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertItems inserts items in one transaction, skipping natural-key duplicates.
func (s *SQLStore) InsertItems(ctx context.Context, items []model.InventoryItem) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	db, err := s.acquire()
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insertIgnore+` INTO user_inventory
		(user_username, owner_bot_id, catalog_id, value, variant, state, bot_trade_status, item_in_game_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := toMillis(s.now())
	var created int64
	for _, it := range items {
		res, err := stmt.ExecContext(ctx, it.Username, it.BotID, it.CatalogID, it.Value, it.Variant.String(),
			string(it.State), string(it.TradeStatus), it.ItemInGameID, now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert item %s: %w", it.ItemInGameID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// DeleteOwnedItems selects then deletes the owned subset in one transaction.
func (s *SQLStore) DeleteOwnedItems(ctx context.Context, username string, botID int64, itemInGameIDs []string) ([]model.InventoryItem, error) {
	if len(itemInGameIDs) == 0 {
		return []model.InventoryItem{}, nil
	}
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := append([]any{username, botID}, stringArgs(itemInGameIDs)...)
	rows, err := tx.QueryContext(ctx, `SELECT `+sqlItemColumns+`
		FROM user_inventory ui
		JOIN catalog_entries c ON ui.catalog_id = c.id
		WHERE ui.user_username = ? AND ui.owner_bot_id = ?
			AND ui.item_in_game_id IN (`+placeholders(len(itemInGameIDs))+`)`+s.dialect.forUpdate, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select owned items: %w", err)
	}
	items, err := collectSQLItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, tx.Commit()
	}

	ids := make([]any, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_inventory WHERE id IN (`+placeholders(len(ids))+`)`, ids...); err != nil {
		return nil, fmt.Errorf("failed to delete owned items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return items, nil
}

// ReleaseWithdrawClaims resets the trade status of the user's WITHDRAWING items.
func (s *SQLStore) ReleaseWithdrawClaims(ctx context.Context, username string, botID int64) (int64, error) {
	db, err := s.acquire()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE user_inventory SET bot_trade_status = ?, updated_at = ?
		WHERE user_username = ? AND owner_bot_id = ? AND state = ?`,
		string(model.TradeStatusNone), toMillis(s.now()), username, botID, string(model.ItemStateWithdrawing))
	if err != nil {
		return 0, fmt.Errorf("failed to release withdraw claims: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns statistics about the inventory database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	db, err := s.acquire()
	if err != nil {
		return nil, err
	}

	stats := make(map[string]interface{})
	stats["driver"] = s.dialect.Name

	var users, items, withdrawing int64
	err = db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM user_inventory),
			(SELECT COUNT(*) FROM user_inventory WHERE state = 'WITHDRAWING')`).Scan(&users, &items, &withdrawing)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	stats["total_users"] = users
	stats["total_items"] = items
	stats["withdrawing_items"] = withdrawing

	var size int64
	if err := db.QueryRowContext(ctx, s.dialect.sizeQuery).Scan(&size); err == nil {
		stats["db_size_bytes"] = size
	}

	dbStats := db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Seed inserts fixtures, ignoring rows that already exist.
func (s *SQLStore) Seed(ctx context.Context, f Fixtures) error {
	db, err := s.acquire()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ins := s.dialect.insertIgnore
	for _, b := range f.Bots {
		if _, err := tx.ExecContext(ctx, ins+` INTO bots (id, banned, active, can_join) VALUES (?, ?, ?, ?)`,
			b.ID, b.Banned, b.Active, b.CanJoin); err != nil {
			return fmt.Errorf("failed to seed bot %d: %w", b.ID, err)
		}
	}
	for _, u := range f.Users {
		if _, err := tx.ExecContext(ctx, ins+` INTO users (username) VALUES (?)`, u.Username); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
	}
	for _, c := range f.Catalog {
		args := append([]any{c.Name, c.InGameName}, valueArgs(c.Values)...)
		if _, err := tx.ExecContext(ctx, ins+` INTO catalog_entries (name, in_game_name, `+valueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
			return fmt.Errorf("failed to seed catalog entry %s: %w", c.InGameName, err)
		}
	}
	now := toMillis(s.now())
	for _, it := range f.Items {
		if _, err := tx.ExecContext(ctx, ins+` INTO user_inventory
			(user_username, owner_bot_id, catalog_id, value, variant, state, bot_trade_status, item_in_game_id, created_at, updated_at)
			SELECT ?, ?, c.id, ?, ?, ?, ?, ?, ?, ? FROM catalog_entries c WHERE c.in_game_name = ?`,
			it.Username, it.BotID, it.Value, it.Variant.String(), string(it.State), string(it.TradeStatus),
			it.ItemInGameID, now, now, it.InGameName); err != nil {
			return fmt.Errorf("failed to seed item %s: %w", it.ItemInGameID, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func collectSQLItems(rows *sql.Rows) ([]model.InventoryItem, error) {
	defer rows.Close()

	items := make([]model.InventoryItem, 0)
	for rows.Next() {
		var (
			it                 model.InventoryItem
			variant            string
			state, trade       string
			created, updatedAt int64
		)
		if err := rows.Scan(&it.ID, &it.Username, &it.BotID, &it.CatalogID, &it.CatalogName, &it.InGameName,
			&it.Value, &variant, &state, &trade, &it.ItemInGameID, &created, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		it.Variant = model.ParseVariant(variant)
		it.State = model.ItemState(state)
		it.TradeStatus = model.TradeStatus(trade)
		it.CreatedAt = fromMillis(created)
		it.UpdatedAt = fromMillis(updatedAt)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory items: %w", err)
	}
	return items, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ Store = (*SQLStore)(nil)
