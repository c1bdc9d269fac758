package postgres

import (
	"context"

	"github.com/lib/pq"

	"github.com/hrygo/agentroute/store"
)

func (d *DB) UpsertKnowledgeBaseEntry(ctx context.Context, upsert *store.KnowledgeBaseEntry) (*store.KnowledgeBaseEntry, error) {
	if upsert.ID > 0 {
		stmt := `
			UPDATE knowledge_base_entry
			SET candidate_id = $1, keywords = $2, topics = $3, content = $4, updated_ts = $5
			WHERE id = $6`
		if _, err := d.db.ExecContext(ctx, stmt,
			upsert.CandidateID,
			pq.Array(upsert.Keywords),
			pq.Array(upsert.Topics),
			upsert.Content,
			upsert.UpdatedTs,
			upsert.ID,
		); err != nil {
			return nil, err
		}
		return upsert, nil
	}

	stmt := `
		INSERT INTO knowledge_base_entry (candidate_id, keywords, topics, content, updated_ts)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.CandidateID,
		pq.Array(upsert.Keywords),
		pq.Array(upsert.Topics),
		upsert.Content,
		upsert.UpdatedTs,
	).Scan(&upsert.ID); err != nil {
		return nil, err
	}
	return upsert, nil
}

func (d *DB) ListKnowledgeBaseEntries(ctx context.Context, find *store.FindKnowledgeBaseEntry) ([]*store.KnowledgeBaseEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.CandidateID != nil {
		where, args = append(where, "candidate_id = $1"), append(args, *find.CandidateID)
	}

	query := `
		SELECT id, candidate_id, keywords, topics, content, updated_ts
		FROM knowledge_base_entry
		WHERE ` + joinAnd(where) + `
		ORDER BY updated_ts DESC, id DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.KnowledgeBaseEntry{}
	for rows.Next() {
		entry := &store.KnowledgeBaseEntry{}
		if err := rows.Scan(
			&entry.ID,
			&entry.CandidateID,
			pq.Array(&entry.Keywords),
			pq.Array(&entry.Topics),
			&entry.Content,
			&entry.UpdatedTs,
		); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

func (d *DB) DeleteKnowledgeBaseEntries(ctx context.Context, delete *store.DeleteKnowledgeBaseEntry) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if delete.CandidateID != nil {
		where, args = append(where, "candidate_id = $1"), append(args, *delete.CandidateID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_base_entry WHERE `+joinAnd(where), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
