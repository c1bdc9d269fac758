package postgres

import (
	"database/sql"
	"strings"

	"github.com/pgvector/pgvector-go"
)

func joinAnd(conditions []string) string {
	return strings.Join(conditions, " AND ")
}

// vectorValue converts a float slice to an insertable pgvector value,
// mapping empty to SQL NULL.
func vectorValue(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

// scanVector decodes a nullable vector column.
func scanVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Scan([]byte(raw.String)); err != nil {
		return nil, err
	}
	return vec.Slice(), nil
}
