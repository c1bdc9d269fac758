package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// CacheEntry model related methods.
	CreateCacheEntry(ctx context.Context, create *CacheEntry) (*CacheEntry, error)
	ListCacheEntries(ctx context.Context, find *FindCacheEntry) ([]*CacheEntry, error)
	DeleteCacheEntries(ctx context.Context, delete *DeleteCacheEntry) (int64, error)

	// KnowledgeBaseEntry model related methods.
	UpsertKnowledgeBaseEntry(ctx context.Context, upsert *KnowledgeBaseEntry) (*KnowledgeBaseEntry, error)
	ListKnowledgeBaseEntries(ctx context.Context, find *FindKnowledgeBaseEntry) ([]*KnowledgeBaseEntry, error)
	DeleteKnowledgeBaseEntries(ctx context.Context, delete *DeleteKnowledgeBaseEntry) (int64, error)

	// Graph snapshot related methods.
	// ReplaceGraphSnapshot replaces the persisted snapshot as a whole within
	// one transaction so readers never observe a partially written graph.
	ReplaceGraphSnapshot(ctx context.Context, nodes []*GraphNode, edges []*GraphEdge) error
	GetGraphSnapshot(ctx context.Context) ([]*GraphNode, []*GraphEdge, error)
}
