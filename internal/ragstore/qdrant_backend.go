package ragstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantBackend is the production Backend, grounded in
// Tangerg/lynx/vectorstores' use of github.com/qdrant/go-client. It
// treats Qdrant purely as a vector index: "cognify" has no Qdrant
// equivalent and is a no-op here, since Qdrant indexes points
// immediately on upsert rather than requiring a separate build step.
type QdrantBackend struct {
	client     *qdrant.Client
	collection string
	embed      Embedder
}

// Embedder turns text into the fixed-width vector Qdrant indexes.
// Kept as an interface so the embedding model is swappable without
// touching the backend; spec.md treats the vector/graph store as
// fully opaque, so this module does not mandate a specific embedding
// provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QdrantBackendConfig configures QdrantBackend.
type QdrantBackendConfig struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	Embedder   Embedder
}

// NewQdrantBackend dials Qdrant and ensures the target collection
// exists.
func NewQdrantBackend(ctx context.Context, cfg QdrantBackendConfig) (*QdrantBackend, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ragstore: connect qdrant: %w", err)
	}

	b := &QdrantBackend{client: client, collection: cfg.Collection, embed: cfg.Embedder}
	if err := b.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

const defaultVectorSize = 1536

func (b *QdrantBackend) ensureCollection(ctx context.Context) error {
	exists, err := b.client.CollectionExists(ctx, b.collection)
	if err != nil {
		return fmt.Errorf("ragstore: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}

	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     defaultVectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("ragstore: create qdrant collection: %w", err)
	}
	return nil
}

// Add embeds text and upserts it as a new point carrying the raw text
// as payload, so Search can recover it via the "text" key (the
// KeyedTextResult shape).
func (b *QdrantBackend) Add(ctx context.Context, text string) error {
	vector, err := b.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id := uuid.New().String()
	_, err = b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: b.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{"text": text}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Cognify is a no-op: Qdrant has no separate "build derived
// structures" phase distinct from upsert.
func (b *QdrantBackend) Cognify(context.Context) error { return nil }

// Search embeds query and runs a similarity search, projecting each
// hit's "text" payload field into a KeyedTextResult. mode is accepted
// for interface symmetry with other possible backends but does not
// change Qdrant's query behavior — a vector index has one search mode.
func (b *QdrantBackend) Search(ctx context.Context, query string, _ SearchMode) ([]RawResult, error) {
	vector, err := b.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	const topK = 10
	limit := uint64(topK)
	points, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: b.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	results := make([]RawResult, 0, len(points))
	for _, p := range points {
		if text, ok := p.Payload["text"]; ok {
			results = append(results, KeyedTextResult(text.GetStringValue()))
			continue
		}
		results = append(results, OpaqueResult(p.Id))
	}
	return results, nil
}

// Prune removes all points but keeps the collection itself, so later
// Add calls don't need to recreate it.
func (b *QdrantBackend) Prune(ctx context.Context) error {
	_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: b.collection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
	})
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	return nil
}

// ResetAll drops and recreates the collection entirely.
func (b *QdrantBackend) ResetAll(ctx context.Context) error {
	if err := b.client.DeleteCollection(ctx, b.collection); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	return b.ensureCollection(ctx)
}
