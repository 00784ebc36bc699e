package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path string `mapstructure:"path" json:"path"`
}

// SQLiteStorage persists keys in a single SQLite table.
// Expiry is evaluated against the supplied clock.
type SQLiteStorage struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteStorage opens (or creates) the database and its table.
func NewSQLiteStorage(cfg *SQLiteConfig, c clock.Clock) (*SQLiteStorage, error) {
	if cfg == nil || cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, clock: c}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS kv_expires_at ON kv(expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	if s.expired(expiresAt) {
		return nil, nil
	}
	return value, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiry(exp))
	if err != nil {
		return fmt.Errorf("sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Increment(ctx context.Context, key string, delta int64, exp time.Duration) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	var (
		raw       []byte
		expiresAt sql.NullInt64
		current   int64
	)
	err = tx.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&raw, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		expiresAt = s.expiry(exp)
	case err != nil:
		return 0, fmt.Errorf("sqlite increment %q: %w", key, err)
	case s.expired(expiresAt):
		expiresAt = s.expiry(exp)
	default:
		current, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("key %q does not hold a counter: %w", key, err)
		}
	}

	current += delta
	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, []byte(strconv.FormatInt(current, 10)), expiresAt)
	if err != nil {
		return 0, fmt.Errorf("sqlite increment %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite commit: %w", err)
	}
	return current, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete %q: %w", key, err)
	}
	return nil
}

// Cleanup deletes expired rows.
func (s *SQLiteStorage) Cleanup(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.clock.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite cleanup: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) expiry(exp time.Duration) sql.NullInt64 {
	if exp <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.clock.Now().Add(exp).UnixNano(), Valid: true}
}

func (s *SQLiteStorage) expired(expiresAt sql.NullInt64) bool {
	return expiresAt.Valid && s.clock.Now().UnixNano() >= expiresAt.Int64
}
