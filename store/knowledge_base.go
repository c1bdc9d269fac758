package store

import (
	"context"
)

// KnowledgeBaseEntry is a record in a candidate's private knowledge base.
// Entries are written by the owning candidate after it completes work and
// are read-only to the routing system. Raw fields never leave the prober;
// only a derived relevance score does.
type KnowledgeBaseEntry struct {
	ID int32

	CandidateID string
	Keywords    []string
	Topics      []string
	// Content is optional free-form text.
	Content string

	UpdatedTs int64
}

type FindKnowledgeBaseEntry struct {
	CandidateID *string
}

type DeleteKnowledgeBaseEntry struct {
	CandidateID *string
}

func (s *Store) UpsertKnowledgeBaseEntry(ctx context.Context, upsert *KnowledgeBaseEntry) (*KnowledgeBaseEntry, error) {
	return s.driver.UpsertKnowledgeBaseEntry(ctx, upsert)
}

func (s *Store) ListKnowledgeBaseEntries(ctx context.Context, find *FindKnowledgeBaseEntry) ([]*KnowledgeBaseEntry, error) {
	return s.driver.ListKnowledgeBaseEntries(ctx, find)
}

func (s *Store) DeleteKnowledgeBaseEntries(ctx context.Context, delete *DeleteKnowledgeBaseEntry) (int64, error) {
	return s.driver.DeleteKnowledgeBaseEntries(ctx, delete)
}
