package postgres

import (
	"context"
	"database/sql"

	"github.com/hrygo/agentroute/store"
)

func (d *DB) CreateCacheEntry(ctx context.Context, create *store.CacheEntry) (*store.CacheEntry, error) {
	stmt := `
		INSERT INTO cache_entry (query, vector, selected_candidate, confidence, method, created_ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (query) DO UPDATE SET
			vector = excluded.vector,
			selected_candidate = excluded.selected_candidate,
			confidence = excluded.confidence,
			method = excluded.method,
			created_ts = excluded.created_ts
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Query,
		vectorValue(create.Vector),
		create.SelectedCandidate,
		create.Confidence,
		create.Method,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListCacheEntries(ctx context.Context, find *store.FindCacheEntry) ([]*store.CacheEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.SelectedCandidate != nil {
		where, args = append(where, "selected_candidate = $1"), append(args, *find.SelectedCandidate)
	}

	query := `
		SELECT id, query, vector::text, selected_candidate, confidence, method, created_ts
		FROM cache_entry
		WHERE ` + joinAnd(where) + `
		ORDER BY created_ts DESC, id DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.CacheEntry{}
	for rows.Next() {
		entry := &store.CacheEntry{}
		var vector sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.Query,
			&vector,
			&entry.SelectedCandidate,
			&entry.Confidence,
			&entry.Method,
			&entry.CreatedTs,
		); err != nil {
			return nil, err
		}
		if entry.Vector, err = scanVector(vector); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

func (d *DB) DeleteCacheEntries(ctx context.Context, delete *store.DeleteCacheEntry) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if delete.SelectedCandidate != nil {
		where, args = append(where, "selected_candidate = $1"), append(args, *delete.SelectedCandidate)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM cache_entry WHERE `+joinAnd(where), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
