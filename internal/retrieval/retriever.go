// Package retrieval turns a query string into ranked regulation chunks.
//
// Two implementations satisfy the Searcher contract consumed by the answer
// pipeline: Retriever issues a single vector search, MultiQuery fans the
// search out over LLM-generated paraphrases to improve recall. Which one a
// deployment uses is a configuration choice, not a code path.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
)

// Searcher is the retrieval contract consumed by the answer pipeline.
type Searcher interface {
	Search(ctx context.Context, query string) ([]knowledge.Chunk, error)
}

// Retriever performs a single top-k vector search.
type Retriever struct {
	store  knowledge.Store
	topK   int
	logger *slog.Logger
}

// NewRetriever creates a single-query retriever.
func NewRetriever(store knowledge.Store, topK int, logger *slog.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, topK: topK, logger: logger}, nil
}

// Search returns the top-k chunks for the query, most similar first.
// Duplicate source/page combinations are allowed here; citation-level
// deduplication happens downstream.
func (r *Retriever) Search(ctx context.Context, query string) ([]knowledge.Chunk, error) {
	chunks, err := r.store.Search(ctx, query, r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	r.logger.Debug("retrieved chunks", "query_length", len(query), "count", len(chunks))
	return chunks, nil
}
