package chat

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/teamcheckmate/chaekcheck/internal/config"
	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/testutil"
)

// newTestClient wires a Client to a mock model on a fresh Genkit instance.
func newTestClient(t *testing.T, mock *testutil.MockLLM) *Client {
	t.Helper()

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}
	mock.RegisterModel(g)

	client, err := NewClient(ClientConfig{
		Genkit:    g,
		Provider:  config.ProviderOllama,
		ModelName: "mock/test-model",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// stubSearcher returns canned chunks and records the last query it saw.
type stubSearcher struct {
	chunks    []knowledge.Chunk
	err       error
	lastQuery string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]knowledge.Chunk, error) {
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}
