//go:build integration

package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/teamcheckmate/chaekcheck/db"
	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/testutil"
)

// startPostgres brings up a pgvector-enabled PostgreSQL and returns a pool
// with migrations applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("chaekcheck_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	if err := db.Migrate(dsn); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestPGStoreRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	embedder, mock := newTestEmbedderWithDim(t, 768)

	mock.SetVector("우선지명 조항", unitVector(768, 0))
	mock.SetVector("벌칙 조항", unitVector(768, 1))
	mock.SetVector("우선지명 질의", unitVector(768, 0))

	store := knowledge.NewPGStore(pool, embedder, nil)
	ctx := context.Background()

	chunks := []knowledge.Chunk{
		{Content: "우선지명 조항", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 4},
		{Content: "벌칙 조항", Source: "football_kleague_penalty_2018.pdf", Page: 9},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}

	got, err := store.Search(ctx, "우선지명 질의", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search() returned %d chunks, want 1", len(got))
	}
	if got[0].Content != "우선지명 조항" || got[0].Page != 4 {
		t.Errorf("Search() top result = %+v", got[0])
	}
	if got[0].Score <= 0.9 {
		t.Errorf("Search() similarity = %v, want near 1 for an identical vector", got[0].Score)
	}
}

func TestPGStoreUpsertReplaces(t *testing.T) {
	pool := startPostgres(t)
	embedder, _ := newTestEmbedderWithDim(t, 768)

	store := knowledge.NewPGStore(pool, embedder, nil)
	ctx := context.Background()

	chunk := knowledge.Chunk{
		ID:      "11111111-1111-1111-1111-111111111111",
		Content: "초판 내용",
		Source:  "a.pdf",
		Page:    1,
	}
	if err := store.Add(ctx, []knowledge.Chunk{chunk}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	chunk.Content = "개정 내용"
	if err := store.Add(ctx, []knowledge.Chunk{chunk}); err != nil {
		t.Fatalf("Add() second time error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d after upsert, want 1", count)
	}

	got, err := store.Search(ctx, "개정 내용", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "개정 내용" {
		t.Errorf("Search() = %+v, want replaced content", got)
	}
}

// newTestEmbedderWithDim registers a mock embedder of the given dimensions.
func newTestEmbedderWithDim(t *testing.T, dim int) (ai.Embedder, *testutil.MockEmbedder) {
	t.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}
	mock := testutil.NewMockEmbedder(dim)
	return mock.RegisterEmbedder(g), mock
}

// unitVector returns a dim-length unit vector with a 1 at index hot.
func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}
