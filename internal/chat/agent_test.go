package chat

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/session"
	"github.com/teamcheckmate/chaekcheck/internal/testutil"
)

// newTestAgent wires a full pipeline around one mock model and one stub
// searcher. Router is included; pass routerEnabled=false for pipelines that
// skip classification.
func newTestAgent(t *testing.T, mock *testutil.MockLLM, searcher *stubSearcher, routerEnabled bool) (*Agent, *session.Store) {
	t.Helper()

	client := newTestClient(t, mock)

	var router *Router
	var err error
	if routerEnabled {
		router, err = NewRouter(client, "", nil)
		if err != nil {
			t.Fatalf("NewRouter() error = %v", err)
		}
	}

	reformulator, err := NewReformulator(client, "", nil)
	if err != nil {
		t.Fatalf("NewReformulator() error = %v", err)
	}
	generator, err := NewGenerator(client, "", nil)
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	sessions := session.NewStore(16, time.Hour, slog.Default())

	agent, err := New(Config{
		Router:       router,
		Reformulator: reformulator,
		Searcher:     searcher,
		Generator:    generator,
		Sessions:     sessions,
		MaxCitations: 4,
		PreviewLen:   100,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return agent, sessions
}

func TestAgentAnswersRegulationQuestion(t *testing.T) {
	mock := testutil.NewMockLLM(RefusalNoProvision)
	mock.AddResponse("분류", "football")
	mock.AddResponse("유소년", "## 우선지명\n만 18세 이하 선수를 우선지명할 수 있습니다.")

	searcher := &stubSearcher{chunks: []knowledge.Chunk{
		{Content: "제18조 (우선지명) 만 18세 이하", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 4},
		{Content: "제18조 별표", Source: "football_kleague_youthclubsystem_2018.pdf", Page: 4},
	}}

	agent, sessions := newTestAgent(t, mock, searcher, true)

	answer, err := agent.Ask(context.Background(), "s1", "케이리그 유소년 클럽 시스템 운영 나이 기준이 뭐야?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Refused {
		t.Errorf("Ask() Refused = true, answer = %q", answer.Text)
	}
	if len(answer.Citations) != 1 {
		t.Fatalf("citations = %d, want 1 after same-page dedup", len(answer.Citations))
	}
	if c := answer.Citations[0]; c.File != "K리그 유소년 클럽 시스템 운영 세칙" || c.Page != 5 {
		t.Errorf("citation = %+v", c)
	}
	if answer.Elapsed <= 0 {
		t.Error("Elapsed not recorded")
	}

	// Answered turns are recorded as a user/assistant pair.
	if got := sessions.Get("s1").Len(); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

func TestAgentGuardrailShortCircuits(t *testing.T) {
	mock := testutil.NewMockLLM("unrelated")
	searcher := &stubSearcher{}

	agent, sessions := newTestAgent(t, mock, searcher, true)

	answer, err := agent.Ask(context.Background(), "s1", "오늘 저녁 뭐 먹을까?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if answer.Text != RefusalGuardrail {
		t.Errorf("Ask() = %q, want the fixed guardrail sentence", answer.Text)
	}
	if !answer.Refused {
		t.Error("Ask() Refused = false")
	}
	if len(answer.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(answer.Citations))
	}
	if searcher.lastQuery != "" {
		t.Errorf("retrieval ran for an off-domain message: %q", searcher.lastQuery)
	}
	// Exactly one model call: classification only.
	if n := mock.CallCount(); n != 1 {
		t.Errorf("model called %d times, want 1", n)
	}
	if got := sessions.Get("s1").Len(); got != 0 {
		t.Errorf("refused turn was recorded in history (len=%d)", got)
	}
}

func TestAgentUnsupportedSport(t *testing.T) {
	mock := testutil.NewMockLLM("other-sport")
	agent, _ := newTestAgent(t, mock, &stubSearcher{}, true)

	answer, err := agent.Ask(context.Background(), "s1", "배구 리베로 교체 규정 알려줘")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != AnswerUnsupportedSport {
		t.Errorf("Ask() = %q, want the fixed unsupported-sport sentence", answer.Text)
	}
	if !answer.Refused || len(answer.Citations) != 0 {
		t.Errorf("unexpected answer shape: %+v", answer)
	}
}

func TestAgentNoProvisionRefusalNotRecorded(t *testing.T) {
	// Fallback answer is the no-provision refusal; router disabled so the
	// question goes straight to retrieval.
	mock := testutil.NewMockLLM(RefusalNoProvision)
	searcher := &stubSearcher{chunks: []knowledge.Chunk{
		{Content: "무관한 조항", Source: "baseball_kbo_rule_2025.pdf", Page: 10},
	}}

	agent, sessions := newTestAgent(t, mock, searcher, false)

	answer, err := agent.Ask(context.Background(), "s1", "구단 연봉 상한선이 얼마야?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !answer.Refused {
		t.Errorf("Ask() Refused = false for %q", answer.Text)
	}
	if len(answer.Citations) != 0 {
		t.Errorf("refused answer carries %d citations, want 0", len(answer.Citations))
	}
	if got := sessions.Get("s1").Len(); got != 0 {
		t.Errorf("refused turn was recorded in history (len=%d)", got)
	}
}

func TestAgentFollowUpUsesReformulatedQuery(t *testing.T) {
	const standalone = "K리그 프로클럽 B팀 선수 연령 제한은 무엇인가요?"

	mock := testutil.NewMockLLM("답변입니다.")
	mock.AddResponse("B팀", standalone)

	searcher := &stubSearcher{chunks: []knowledge.Chunk{
		{Content: "B팀 운영 세칙", Source: "football_kleague_proclubbteam_2021.pdf", Page: 2},
	}}

	agent, sessions := newTestAgent(t, mock, searcher, false)

	// Seed history so the follow-up triggers reformulation.
	sessions.Get("s1").Append("유소년 선수 나이 기준이 뭐야?", "만 18세 이하입니다.")

	answer, err := agent.Ask(context.Background(), "s1", "그럼 B팀은?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if searcher.lastQuery != standalone {
		t.Errorf("retrieval query = %q, want reformulated %q", searcher.lastQuery, standalone)
	}

	// History records the original user message, never the reformulation.
	turns := sessions.Get("s1").Snapshot()
	if len(turns) != 4 {
		t.Fatalf("history length = %d, want 4", len(turns))
	}
	if turns[2].Content != "그럼 B팀은?" {
		t.Errorf("recorded user message = %q, want the original", turns[2].Content)
	}
	if answer.Refused {
		t.Errorf("Ask() Refused = true, answer = %q", answer.Text)
	}
}

func TestAgentClassificationFailureFailsRequest(t *testing.T) {
	mock := testutil.NewMockLLM("tennis") // outside the closed label set
	agent, _ := newTestAgent(t, mock, &stubSearcher{}, true)

	_, err := agent.Ask(context.Background(), "s1", "아무 질문")
	if !errors.Is(err, ErrClassification) {
		t.Errorf("Ask() error = %v, want ErrClassification", err)
	}
}

func TestAgentRetrievalFailureFailsRequest(t *testing.T) {
	mock := testutil.NewMockLLM("답변")
	searcher := &stubSearcher{err: errors.New("index unavailable")}
	agent, sessions := newTestAgent(t, mock, searcher, false)

	_, err := agent.Ask(context.Background(), "s1", "질문")
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("Ask() error = %v, want ErrRetrieval", err)
	}
	if got := sessions.Get("s1").Len(); got != 0 {
		t.Errorf("failed turn was recorded in history (len=%d)", got)
	}
}

func TestAgentConfigValidation(t *testing.T) {
	mock := testutil.NewMockLLM("답변")
	client := newTestClient(t, mock)

	reformulator, _ := NewReformulator(client, "", nil)
	generator, _ := NewGenerator(client, "", nil)
	sessions := session.NewStore(4, 0, nil)
	searcher := &stubSearcher{}

	valid := Config{
		Reformulator: reformulator,
		Searcher:     searcher,
		Generator:    generator,
		Sessions:     sessions,
		MaxCitations: 4,
		PreviewLen:   100,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing reformulator", func(c *Config) { c.Reformulator = nil }},
		{"missing searcher", func(c *Config) { c.Searcher = nil }},
		{"missing generator", func(c *Config) { c.Generator = nil }},
		{"missing sessions", func(c *Config) { c.Sessions = nil }},
		{"zero max citations", func(c *Config) { c.MaxCitations = 0 }},
		{"zero preview length", func(c *Config) { c.PreviewLen = 0 }},
	}

	if _, err := New(valid); err != nil {
		t.Fatalf("New(valid) error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() = nil error, want validation failure")
			}
		})
	}
}
