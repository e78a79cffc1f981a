package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// MemStore is an in-memory chunk store backed by chromem-go.
// Used in dev mode and tests, where PostgreSQL is not available.
// Safe for concurrent use (chromem-go collections are internally locked).
type MemStore struct {
	collection *chromem.Collection
	logger     *slog.Logger
}

// NewMemStore creates an in-memory chunk store using the given embedder.
func NewMemStore(embedder ai.Embedder, logger *slog.Logger) (*MemStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection("regulation_chunks", nil, NewEmbeddingFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return &MemStore{collection: collection, logger: logger}, nil
}

// NewEmbeddingFunc creates a chromem-go EmbeddingFunc from a Genkit ai.Embedder.
// chromem-go normalizes vectors itself, so no manual normalization is needed.
func NewEmbeddingFunc(embedder ai.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{
				ai.DocumentFromText(text, nil),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("embed failed: %w", err)
		}
		if len(resp.Embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return resp.Embeddings[0].Embedding, nil
	}
}

// Add stores chunks. chromem-go metadata is string-valued, so the page number
// is stored as its decimal representation and parsed back on search.
func (s *MemStore) Add(ctx context.Context, chunks []Chunk) error {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}

		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				"source": c.Source,
				"page":   strconv.Itoa(c.Page),
			},
		})
		if err != nil {
			return fmt.Errorf("adding chunk %q: %w", c.ID, err)
		}
	}

	s.logger.Debug("added chunks", "count", len(chunks))
	return nil
}

// Search returns up to k chunks by cosine similarity.
func (s *MemStore) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	// chromem-go rejects nResults larger than the collection size.
	if n := s.collection.Count(); k > n {
		if n == 0 {
			return nil, nil
		}
		k = n
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	results, err := s.collection.Query(queryCtx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{
			ID:      r.ID,
			Content: r.Content,
			Source:  r.Metadata["source"],
			Page:    NormalizePage(r.Metadata["page"]),
			Score:   r.Similarity,
		})
	}

	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *MemStore) Count(_ context.Context) (int64, error) {
	return int64(s.collection.Count()), nil
}
