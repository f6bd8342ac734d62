package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/klaxon/pkg/model"
)

// SQLiteBackend stores JSON-encoded records in a single relational table
// keyed by record key.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and runs
// migrations.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var count int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := b.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("init schema_migrations: %w", err)
		}
	}

	var current int
	if err := b.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version: 1,
			statements: []string{`
			CREATE TABLE IF NOT EXISTS records (
				key TEXT PRIMARY KEY,
				doc TEXT NOT NULL
			)`},
		},
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := b.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %d: %w", m.version, err)
			}
		}
		if _, err := b.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			return fmt.Errorf("update schema version: %w", err)
		}
	}
	return nil
}

// Get retrieves a record by key.
func (b *SQLiteBackend) Get(key string) (model.Record, error) {
	var doc string
	err := b.db.QueryRowContext(context.Background(), "SELECT doc FROM records WHERE key = ?", key).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %q: %w", key, err)
	}
	rec := model.Record{}
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("store: decode %q: %w", key, err)
	}
	return rec, nil
}

// Set stores a record under key, replacing any previous one.
func (b *SQLiteBackend) Set(key string, rec model.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", key, err)
	}
	_, err = b.db.ExecContext(context.Background(),
		"INSERT INTO records (key, doc) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET doc = excluded.doc",
		key, string(raw))
	if err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// Edit merges partial into the stored record inside one transaction and
// returns the merged result.
func (b *SQLiteBackend) Edit(key string, partial model.Record) (model.Record, error) {
	ctx := context.Background()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	merged := model.Record{}
	var doc string
	err = tx.QueryRowContext(ctx, "SELECT doc FROM records WHERE key = ?", key).Scan(&doc)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("store: edit %q: %w", key, err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(doc), &merged); err != nil {
			return nil, fmt.Errorf("store: decode %q: %w", key, err)
		}
	}
	merged.Merge(partial)

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("store: encode %q: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO records (key, doc) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET doc = excluded.doc",
		key, string(raw)); err != nil {
		return nil, fmt.Errorf("store: edit %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return merged, nil
}

// Remove deletes the record under key.
func (b *SQLiteBackend) Remove(key string) error {
	_, err := b.db.ExecContext(context.Background(), "DELETE FROM records WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("store: remove %q: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys in sorted order.
func (b *SQLiteBackend) Keys() ([]string, error) {
	rows, err := b.db.QueryContext(context.Background(), "SELECT key FROM records ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("store: list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Compile-time check: *SQLiteBackend implements Backend.
var _ Backend = (*SQLiteBackend)(nil)
