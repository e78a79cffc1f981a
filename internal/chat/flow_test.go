package chat

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/teamcheckmate/chaekcheck/internal/testutil"
)

func TestFlowIsSingleton(t *testing.T) {
	ResetFlowForTesting()
	t.Cleanup(ResetFlowForTesting)

	mock := testutil.NewMockLLM("답변")
	agent, _ := newTestAgent(t, mock, &stubSearcher{}, false)

	g := genkit.Init(context.Background())
	if g == nil {
		t.Fatal("genkit.Init returned nil")
	}

	first := NewFlow(g, agent)
	second := NewFlow(g, agent)
	if first == nil {
		t.Fatal("NewFlow() = nil")
	}
	if first != second {
		t.Error("NewFlow() registered the flow twice")
	}
}
