// Package postgres implements the store driver on PostgreSQL with pgvector
// for embedding columns. The vector dimensionality is fixed per deployment
// through the profile.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/internal/profile"
	"github.com/hrygo/agentroute/store"
)

// DB is the PostgreSQL store driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL database and applies the schema.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	sqlDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres db")
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping postgres db")
	}

	driver := &DB{db: sqlDB, profile: profile}
	if err := driver.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "migrate postgres schema")
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
	var exists bool
	err := d.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'cache_entry')`,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (d *DB) migrate(ctx context.Context) error {
	dim := d.profile.EmbeddingDim
	schema := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS cache_entry (
			id SERIAL PRIMARY KEY,
			query TEXT NOT NULL UNIQUE,
			vector vector(%d),
			selected_candidate TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			method TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`, dim),
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_selected_candidate ON cache_entry (selected_candidate)`,
		`CREATE TABLE IF NOT EXISTS knowledge_base_entry (
			id SERIAL PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			keywords TEXT[] NOT NULL DEFAULT '{}',
			topics TEXT[] NOT NULL DEFAULT '{}',
			content TEXT NOT NULL DEFAULT '',
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_base_entry_candidate_id ON knowledge_base_entry (candidate_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS graph_node (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			label TEXT NOT NULL,
			embedding vector(%d)
		)`, dim),
		`CREATE TABLE IF NOT EXISTS graph_edge (
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id)
		)`,
	}
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %q", stmt)
		}
	}
	return nil
}
