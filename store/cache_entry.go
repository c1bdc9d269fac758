package store

import (
	"context"
)

// CacheEntry is a persisted routing decision keyed by the query it answered.
// The in-memory semantic cache is the authority at runtime; these rows exist
// so the cache survives restarts.
type CacheEntry struct {
	ID int32

	// Query is the original query text the decision was made for.
	Query string
	// Vector is the query feature vector, empty when the similarity
	// strategy is purely lexical. Dimensionality is fixed per deployment.
	Vector []float32
	// SelectedCandidate is the winning candidate ID.
	SelectedCandidate string
	// Confidence is in [0, 1].
	Confidence float64
	// Method records how the decision was reached (static, combined, ...).
	Method string

	CreatedTs int64
}

type FindCacheEntry struct {
	SelectedCandidate *string
}

type DeleteCacheEntry struct {
	// SelectedCandidate limits deletion to entries that chose this
	// candidate. Nil deletes every entry.
	SelectedCandidate *string
}

func (s *Store) CreateCacheEntry(ctx context.Context, create *CacheEntry) (*CacheEntry, error) {
	return s.driver.CreateCacheEntry(ctx, create)
}

func (s *Store) ListCacheEntries(ctx context.Context, find *FindCacheEntry) ([]*CacheEntry, error) {
	return s.driver.ListCacheEntries(ctx, find)
}

func (s *Store) DeleteCacheEntries(ctx context.Context, delete *DeleteCacheEntry) (int64, error) {
	return s.driver.DeleteCacheEntries(ctx, delete)
}
