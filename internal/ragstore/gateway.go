// Package ragstore implements the RAG gateway (spec.md §4.3, C3): a
// thin wrapper around an opaque vector/graph store (add, cognify,
// search, prune, resetAll) that adds result caching and a stable
// result-to-string projection. The gateway never maintains its own
// index; it trusts the backend entirely (spec.md §9 Open Question 4).
package ragstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// SearchMode selects which capability of the backend store to invoke
// (spec.md §4.3 "Search modes").
type SearchMode string

const (
	ModeNatural    SearchMode = "natural"
	ModeCompletion SearchMode = "completion"
	ModeChunks     SearchMode = "chunks"
	ModeInsights   SearchMode = "insights"
	ModeSummaries  SearchMode = "summaries"
	ModeGraph      SearchMode = "graph"
)

// normalizeMode defaults any mode the backend doesn't recognize to
// natural, per spec.md §4.3 "Unknown modes default to natural."
func normalizeMode(mode SearchMode) SearchMode {
	switch mode {
	case ModeNatural, ModeCompletion, ModeChunks, ModeInsights, ModeSummaries, ModeGraph:
		return mode
	default:
		return ModeNatural
	}
}

// Backend is the opaque vector/graph store contract. Add is
// asynchronous with respect to indexing; Cognify tells the store to
// build whatever derived structures it needs after a batch of adds.
type Backend interface {
	Add(ctx context.Context, text string) error
	Cognify(ctx context.Context) error
	Search(ctx context.Context, query string, mode SearchMode) ([]RawResult, error)
	Prune(ctx context.Context) error
	ResetAll(ctx context.Context) error
}

type cacheKey struct {
	query string
	mode  SearchMode
}

// Gateway is the RAG gateway. It is safe for concurrent use; the
// search cache is guarded by its own lock (spec.md §5 "The RAG search
// cache (shared, mutable) — guarded internally by the gateway").
type Gateway struct {
	backend Backend

	cacheMu sync.RWMutex
	cache   map[cacheKey][]string
}

// New builds a Gateway over backend.
func New(backend Backend) *Gateway {
	return &Gateway{
		backend: backend,
		cache:   make(map[cacheKey][]string),
	}
}

// Add indexes text into the backend store.
func (g *Gateway) Add(ctx context.Context, text string) error {
	if err := g.backend.Add(ctx, text); err != nil {
		return fmt.Errorf("ragstore: add: %w", err)
	}
	return nil
}

// Cognify asks the backend to build whatever derived structures it
// needs after a batch of adds.
func (g *Gateway) Cognify(ctx context.Context) error {
	if err := g.backend.Cognify(ctx); err != nil {
		return fmt.Errorf("ragstore: cognify: %w", err)
	}
	return nil
}

func normalizeQuery(query string) string {
	return strings.TrimSpace(strings.ToLower(query))
}

// Search projects the backend's raw results to strings and memoizes
// them by (normalizedQuery, mode) for the life of the process (spec.md
// §4.3 "Caching": unbounded during a session, cleared by Prune/ResetAll).
func (g *Gateway) Search(ctx context.Context, query string, mode SearchMode) ([]string, error) {
	mode = normalizeMode(mode)
	key := cacheKey{query: normalizeQuery(query), mode: mode}

	g.cacheMu.RLock()
	cached, ok := g.cache[key]
	g.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	raw, err := g.backend.Search(ctx, query, mode)
	if err != nil {
		return nil, fmt.Errorf("ragstore: search: %w", err)
	}

	projected := make([]string, 0, len(raw))
	for _, r := range raw {
		projected = append(projected, ProjectToString(r))
	}

	g.cacheMu.Lock()
	g.cache[key] = projected
	g.cacheMu.Unlock()

	return projected, nil
}

// SearchByCompany biases the query toward a company by simple string
// concatenation. The gateway does not maintain per-company indexes;
// it relies entirely on the backend/LLM to respect the bias (spec.md
// §4.3, §9 Open Question 4).
func (g *Gateway) SearchByCompany(ctx context.Context, query, companyName string, mode SearchMode) ([]string, error) {
	return g.Search(ctx, query+" "+companyName, mode)
}

// Prune clears the search cache and asks the backend to prune its own
// state.
func (g *Gateway) Prune(ctx context.Context) error {
	g.clearCache()
	if err := g.backend.Prune(ctx); err != nil {
		return fmt.Errorf("ragstore: prune: %w", err)
	}
	return nil
}

// ResetAll is a destructive maintenance operation: it deletes the
// backend's own state, clears the gateway's cache, and recreates empty
// state (spec.md §4.3 "Reset"). It does not touch the document
// registry; callers that want a full reset also call registry.ResetAll.
func (g *Gateway) ResetAll(ctx context.Context) error {
	g.clearCache()
	if err := g.backend.ResetAll(ctx); err != nil {
		return fmt.Errorf("ragstore: reset all: %w", err)
	}
	return nil
}

func (g *Gateway) clearCache() {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	g.cache = make(map[cacheKey][]string)
}
