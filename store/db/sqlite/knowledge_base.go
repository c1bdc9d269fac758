package sqlite

import (
	"context"

	"github.com/hrygo/agentroute/store"
)

func (d *DB) UpsertKnowledgeBaseEntry(ctx context.Context, upsert *store.KnowledgeBaseEntry) (*store.KnowledgeBaseEntry, error) {
	keywords, err := marshalJSON(upsert.Keywords)
	if err != nil {
		return nil, err
	}
	topics, err := marshalJSON(upsert.Topics)
	if err != nil {
		return nil, err
	}

	if upsert.ID > 0 {
		stmt := `
			UPDATE knowledge_base_entry
			SET candidate_id = ?, keywords = ?, topics = ?, content = ?, updated_ts = ?
			WHERE id = ?`
		if _, err := d.db.ExecContext(ctx, stmt,
			upsert.CandidateID, keywords, topics, upsert.Content, upsert.UpdatedTs, upsert.ID,
		); err != nil {
			return nil, err
		}
		return upsert, nil
	}

	stmt := `
		INSERT INTO knowledge_base_entry (candidate_id, keywords, topics, content, updated_ts)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.CandidateID, keywords, topics, upsert.Content, upsert.UpdatedTs,
	).Scan(&upsert.ID); err != nil {
		return nil, err
	}
	return upsert, nil
}

func (d *DB) ListKnowledgeBaseEntries(ctx context.Context, find *store.FindKnowledgeBaseEntry) ([]*store.KnowledgeBaseEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.CandidateID != nil {
		where, args = append(where, "candidate_id = ?"), append(args, *find.CandidateID)
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
		var keywords, topics string
		if err := rows.Scan(
			&entry.ID,
			&entry.CandidateID,
			&keywords,
			&topics,
			&entry.Content,
			&entry.UpdatedTs,
		); err != nil {
			return nil, err
		}
		if entry.Keywords, err = unmarshalJSON[string](keywords); err != nil {
			return nil, err
		}
		if entry.Topics, err = unmarshalJSON[string](topics); err != nil {
			return nil, err
		}
		list = append(list, entry)
	}
	return list, rows.Err()
}

func (d *DB) DeleteKnowledgeBaseEntries(ctx context.Context, delete *store.DeleteKnowledgeBaseEntry) (int64, error) {
	where, args := []string{"1 = 1"}, []any{}
	if delete.CandidateID != nil {
		where, args = append(where, "candidate_id = ?"), append(args, *delete.CandidateID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM knowledge_base_entry WHERE `+joinAnd(where), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
