package ragstore

import (
	"context"
	"strings"
	"sync"
)

// NopBackend is a no-operation Backend for tests and local
// development without Qdrant configured: Add appends to an in-memory
// slice, Search does a naive substring match over it. Mirrors the role
// of ai/rag.Nop in the teacher repo — a stateless-by-default stand-in
// satisfying the interface without real I/O, though here it keeps just
// enough state to make ingestion/search round-trip in tests.
type NopBackend struct {
	mu    sync.Mutex
	texts []string
}

// NewNopBackend returns a fresh in-memory Backend.
func NewNopBackend() *NopBackend {
	return &NopBackend{}
}

func (n *NopBackend) Add(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func (n *NopBackend) Cognify(context.Context) error { return nil }

func (n *NopBackend) Search(_ context.Context, query string, _ SearchMode) ([]RawResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := strings.ToLower(query)
	var results []RawResult
	for _, t := range n.texts {
		if strings.Contains(strings.ToLower(t), q) || q == "" {
			results = append(results, TextResult(t))
		}
	}
	return results, nil
}

func (n *NopBackend) Prune(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = nil
	return nil
}

func (n *NopBackend) ResetAll(ctx context.Context) error {
	return n.Prune(ctx)
}
