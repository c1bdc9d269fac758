package sqlite

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/store"
)

// ReplaceGraphSnapshot swaps the persisted graph in one transaction, so a
// reader either sees the old snapshot or the new one, never a mix.
func (d *DB) ReplaceGraphSnapshot(ctx context.Context, nodes []*store.GraphNode, edges []*store.GraphEdge) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_edge`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM graph_node`); err != nil {
		return err
	}

	for _, node := range nodes {
		embedding, err := marshalJSON(node.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_node (id, type, label, embedding) VALUES (?, ?, ?, ?)`,
			node.ID, node.Type, node.Label, embedding,
		); err != nil {
			return err
		}
	}
	for _, edge := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_edge (source_id, target_id, type) VALUES (?, ?, ?)`,
			edge.SourceID, edge.TargetID, edge.Type,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetGraphSnapshot(ctx context.Context) ([]*store.GraphNode, []*store.GraphEdge, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, type, label, embedding FROM graph_node ORDER BY id`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	nodes := []*store.GraphNode{}
	for rows.Next() {
		node := &store.GraphNode{}
		var embedding string
		if err := rows.Scan(&node.ID, &node.Type, &node.Label, &embedding); err != nil {
			return nil, nil, err
		}
		if node.Embedding, err = unmarshalJSON[float32](embedding); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := d.db.QueryContext(ctx, `SELECT source_id, target_id, type FROM graph_edge ORDER BY source_id, target_id`)
	if err != nil {
		return nil, nil, err
	}
	defer edgeRows.Close()

	edges := []*store.GraphEdge{}
	for edgeRows.Next() {
		edge := &store.GraphEdge{}
		if err := edgeRows.Scan(&edge.SourceID, &edge.TargetID, &edge.Type); err != nil {
			return nil, nil, err
		}
		edges = append(edges, edge)
	}
	return nodes, edges, edgeRows.Err()
}
