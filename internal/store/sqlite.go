// Package store keeps sessions, chat history and saved endpoints in a
// single SQLite file.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	_ "modernc.org/sqlite"

	"github.com/soyeahso/uncover/internal/logging"
)

// timeLayout is how timestamps are written to TEXT columns. It sorts
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Memory opens a private in-memory database.
const Memory = ":memory:"

// DB is an open, migrated database.
type DB struct {
	sql *sql.DB
	log *logging.Logger
	now func() time.Time
}

// Open opens or creates the database at path and applies pending
// migrations. Pass Memory for a throwaway database.
func Open(path string, log *logging.Logger) (*DB, error) {
	dsn := path
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == Memory {
		// Each pooled connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{sql: sqlDB, log: log.Sub("store"), now: time.Now}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}

	db.log.Debug().Str("path", path).Msg("database ready")
	return db, nil
}

func (db *DB) Close() error {
	return db.sql.Close()
}

// SQL exposes the pool for ad-hoc queries.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// SchemaVersion is the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := sqlscan.Get(ctx, db.sql, &v, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *DB) timestamp() string {
	return db.now().UTC().Format(timeLayout)
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	// Rows written by SQLite's datetime('now').
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var applied []int
	if err := sqlscan.Select(ctx, db.sql, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("listing applied migrations: %w", err)
	}

	for _, m := range migrations {
		if slices.Contains(applied, m.Version) {
			continue
		}
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applied migration")
	}
	return nil
}
