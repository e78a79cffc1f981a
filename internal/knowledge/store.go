package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds a single vector search (embedding + SQL) so a slow
// index cannot hang a request indefinitely.
const searchTimeout = 10 * time.Second

// Store is the chunk storage contract consumed by retrieval and ingestion.
type Store interface {
	// Add embeds and stores chunks. Existing chunks with the same ID are replaced.
	Add(ctx context.Context, chunks []Chunk) error

	// Search returns the k chunks most similar to the query, best first.
	Search(ctx context.Context, query string, k int) ([]Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int64, error)
}

// Querier defines the database operations PGStore needs.
// Interfaces are defined by the consumer; *pgxpool.Pool satisfies this.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore stores chunks in PostgreSQL with pgvector similarity search.
// Safe for concurrent use.
type PGStore struct {
	db       Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewPGStore creates a PostgreSQL-backed chunk store.
func NewPGStore(db Querier, embedder ai.Embedder, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, embedder: embedder, logger: logger}
}

// Add embeds and upserts chunks one at a time. Chunks without an ID get one.
func (s *PGStore) Add(ctx context.Context, chunks []Chunk) error {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}

		vec, err := s.embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk %q: %w", c.ID, err)
		}

		_, err = s.db.Exec(ctx, `
			INSERT INTO regulation_chunks (id, content, source, page, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content,
			    source = EXCLUDED.source,
			    page = EXCLUDED.page,
			    embedding = EXCLUDED.embedding`,
			c.ID, c.Content, c.Source, c.Page, vec)
		if err != nil {
			return fmt.Errorf("upserting chunk %q: %w", c.ID, err)
		}
	}

	s.logger.Debug("added chunks", "count", len(chunks))
	return nil
}

// Search embeds the query and runs a cosine-distance search.
func (s *PGStore) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.db.Query(queryCtx, `
		SELECT id, content, source, page, 1 - (embedding <=> $1) AS similarity
		FROM regulation_chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vec, k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &c.Page, &c.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	return results, nil
}

// Count returns the total number of stored chunks.
func (s *PGStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM regulation_chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

func (s *PGStore) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
