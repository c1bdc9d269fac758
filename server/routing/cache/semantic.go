// Package cache implements the semantic decision cache: routing decisions
// keyed by query, matched by similarity rather than exact text, with strict
// least-recently-used eviction.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/agentroute/plugin/ai"
	"github.com/hrygo/agentroute/store"
)

// Hit kinds returned by Lookup.
const (
	// HitHard means the cached decision can be returned as-is.
	HitHard = "hard"
	// HitSoft means the cached decision is a hint that still needs
	// confirmation from the cheap ranking path.
	HitSoft = "soft"
	// HitMiss means no cached entry was similar enough.
	HitMiss = "miss"
)

// Config holds cache tuning.
type Config struct {
	Capacity int
	// HardThreshold and SoftThreshold bound the similarity bands:
	// sim >= hard is a hard hit, soft <= sim < hard is a soft hit.
	HardThreshold float64
	SoftThreshold float64
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		HardThreshold: 0.8,
		SoftThreshold: 0.6,
	}
}

// Validate checks the band ordering the lookup logic depends on.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("cache capacity must be positive")
	}
	if c.SoftThreshold <= 0 || c.HardThreshold > 1 {
		return errors.New("cache thresholds must be in (0, 1]")
	}
	if c.SoftThreshold >= c.HardThreshold {
		return errors.New("soft threshold must be below hard threshold")
	}
	return nil
}

// Entry is one cached routing decision.
type Entry struct {
	Query             string
	SelectedCandidate string
	Confidence        float64
	Method            string
	Vector            []float32
	CreatedTs         int64
}

// Result is the outcome of a cache lookup.
type Result struct {
	Kind       string
	Similarity float64
	// Entry is nil on a miss.
	Entry *Entry
}

// Semantic is the similarity-matched LRU cache. All methods are safe for
// concurrent use. The in-memory state is the runtime authority; the store,
// when present, only makes decisions survive restarts.
type Semantic struct {
	config   Config
	strategy ai.Strategy
	store    *store.Store
	logger   *slog.Logger

	mu sync.Mutex
	// ll front is most recently used; elements hold *Entry.
	ll      *list.List
	byQuery map[string]*list.Element
}

// NewSemantic creates a semantic cache. st may be nil for memory-only
// operation.
func NewSemantic(config Config, strategy ai.Strategy, st *store.Store, logger *slog.Logger) (*Semantic, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, errors.New("similarity strategy is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Semantic{
		config:   config,
		strategy: strategy,
		store:    st,
		logger:   logger,
		ll:       list.New(),
		byQuery:  make(map[string]*list.Element),
	}, nil
}

// Len returns the number of cached entries.
func (s *Semantic) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Lookup finds the cached entry most similar to the query. An identical
// query short-circuits the similarity scan. Only a hard hit counts as a
// use for recency purposes.
func (s *Semantic) Lookup(query string) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byQuery[query]; ok {
		s.ll.MoveToFront(el)
		return &Result{Kind: HitHard, Similarity: 1.0, Entry: el.Value.(*Entry)}
	}

	var bestEl *list.Element
	bestSim := 0.0
	for el := s.ll.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*Entry)
		sim := s.strategy.Score(query, entry.Query)
		if sim > bestSim || (sim == bestSim && bestEl != nil && entry.Query < bestEl.Value.(*Entry).Query) {
			bestSim = sim
			bestEl = el
		}
	}

	switch {
	case bestEl != nil && bestSim >= s.config.HardThreshold:
		s.ll.MoveToFront(bestEl)
		return &Result{Kind: HitHard, Similarity: bestSim, Entry: bestEl.Value.(*Entry)}
	case bestEl != nil && bestSim >= s.config.SoftThreshold:
		return &Result{Kind: HitSoft, Similarity: bestSim, Entry: bestEl.Value.(*Entry)}
	default:
		return &Result{Kind: HitMiss}
	}
}

// Put stores a decision for the query, evicting the least recently used
// entry when the cache is full. Persistence is write-through best-effort.
func (s *Semantic) Put(ctx context.Context, entry *Entry) {
	if entry == nil || entry.Query == "" || entry.SelectedCandidate == "" {
		return
	}
	if entry.CreatedTs == 0 {
		entry.CreatedTs = time.Now().Unix()
	}
	if entry.Vector == nil {
		if vectorizer, ok := s.strategy.(ai.Vectorizer); ok {
			if v, err := vectorizer.Vectorize(ctx, entry.Query); err == nil {
				entry.Vector = v
			}
		}
	}

	s.mu.Lock()
	if el, ok := s.byQuery[entry.Query]; ok {
		el.Value = entry
		s.ll.MoveToFront(el)
	} else {
		s.byQuery[entry.Query] = s.ll.PushFront(entry)
		for s.ll.Len() > s.config.Capacity {
			oldest := s.ll.Back()
			s.ll.Remove(oldest)
			delete(s.byQuery, oldest.Value.(*Entry).Query)
		}
	}
	s.mu.Unlock()

	if s.store != nil {
		if _, err := s.store.CreateCacheEntry(ctx, &store.CacheEntry{
			Query:             entry.Query,
			Vector:            entry.Vector,
			SelectedCandidate: entry.SelectedCandidate,
			Confidence:        entry.Confidence,
			Method:            entry.Method,
			CreatedTs:         entry.CreatedTs,
		}); err != nil {
			s.logger.Warn("failed to persist cache entry", "error", err)
		}
	}
}

// Invalidate removes every entry that selected the given candidate; an
// empty candidateID clears the whole cache. The reason is mandatory and
// logged for audit. Returns the number of entries removed in memory.
func (s *Semantic) Invalidate(ctx context.Context, candidateID, reason string) (int, error) {
	if reason == "" {
		return 0, errors.New("invalidation reason is required")
	}

	s.mu.Lock()
	removed := 0
	for el := s.ll.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*Entry)
		if candidateID == "" || entry.SelectedCandidate == candidateID {
			s.ll.Remove(el)
			delete(s.byQuery, entry.Query)
			removed++
		}
		el = next
	}
	s.mu.Unlock()

	if s.store != nil {
		filter := &store.DeleteCacheEntry{}
		if candidateID != "" {
			filter.SelectedCandidate = &candidateID
		}
		if _, err := s.store.DeleteCacheEntries(ctx, filter); err != nil {
			s.logger.Warn("failed to delete persisted cache entries", "error", err)
		}
	}

	s.logger.Info("cache invalidated",
		"candidate", candidateID,
		"reason", reason,
		"removed", removed,
	)
	return removed, nil
}

// Load hydrates the cache from the store. A corrupted persisted state is
// discarded wholesale and logged once; the cache starts empty.
func (s *Semantic) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	entries, err := s.store.ListCacheEntries(ctx, &store.FindCacheEntry{})
	if err != nil {
		s.logger.Warn("failed to load persisted cache, starting empty", "error", err)
		return nil
	}

	for _, e := range entries {
		if e.Query == "" || e.SelectedCandidate == "" || e.Confidence < 0 || e.Confidence > 1 {
			s.logger.Warn("persisted cache is corrupted, starting empty")
			return nil
		}
	}

	// Oldest first, so the most recent decisions end up most recently used
	// and survive any capacity trim.
	sorted := append([]*store.CacheEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedTs < sorted[j].CreatedTs })

	s.mu.Lock()
	for _, e := range sorted {
		if el, ok := s.byQuery[e.Query]; ok {
			s.ll.Remove(el)
			delete(s.byQuery, e.Query)
		}
		s.byQuery[e.Query] = s.ll.PushFront(&Entry{
			Query:             e.Query,
			SelectedCandidate: e.SelectedCandidate,
			Confidence:        e.Confidence,
			Method:            e.Method,
			Vector:            e.Vector,
			CreatedTs:         e.CreatedTs,
		})
		for s.ll.Len() > s.config.Capacity {
			oldest := s.ll.Back()
			s.ll.Remove(oldest)
			delete(s.byQuery, oldest.Value.(*Entry).Query)
		}
	}
	loaded := s.ll.Len()
	s.mu.Unlock()

	if loaded > 0 {
		s.logger.Info("cache hydrated from store", "entries", loaded)
	}
	return nil
}
