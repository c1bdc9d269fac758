// Package sqlite implements the store driver on SQLite. It is the default
// driver; a single file under the data directory holds everything.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/hrygo/agentroute/internal/profile"
	"github.com/hrygo/agentroute/store"
)

// DB is the SQLite store driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database and applies the schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL keeps readers unblocked during write-through; busy_timeout covers
	// the short write bursts around graph rebuilds.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=foreign_keys(ON)", profile.DSN)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %q", profile.DSN)
	}

	driver := &DB{db: sqlDB, profile: profile}
	if err := driver.migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "migrate sqlite schema")
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// IsInitialized reports whether the schema exists.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'cache_entry'`,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS cache_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL UNIQUE,
		vector TEXT NOT NULL DEFAULT '[]',
		selected_candidate TEXT NOT NULL,
		confidence REAL NOT NULL,
		method TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cache_entry_selected_candidate ON cache_entry (selected_candidate)`,
	`CREATE TABLE IF NOT EXISTS knowledge_base_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		candidate_id TEXT NOT NULL,
		keywords TEXT NOT NULL DEFAULT '[]',
		topics TEXT NOT NULL DEFAULT '[]',
		content TEXT NOT NULL DEFAULT '',
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_knowledge_base_entry_candidate_id ON knowledge_base_entry (candidate_id)`,
	`CREATE TABLE IF NOT EXISTS graph_node (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		label TEXT NOT NULL,
		embedding TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS graph_edge (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id)
	)`,
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %q", stmt)
		}
	}
	return nil
}
