package sqlite

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

func joinAnd(conditions []string) string {
	return strings.Join(conditions, " AND ")
}

// marshalJSON encodes a slice column. Nil encodes as an empty array so the
// round trip never produces SQL NULL.
func marshalJSON[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal json column")
	}
	return string(data), nil
}

func unmarshalJSON[T any](data string) ([]T, error) {
	if data == "" {
		return nil, nil
	}
	var v []T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, errors.Wrap(err, "unmarshal json column")
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}
