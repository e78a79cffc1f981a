package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// defaultReformulatePrompt rewrites a follow-up question into a standalone
// retrieval query. The model must not answer the question here.
const defaultReformulatePrompt = `대화 기록과 최신 사용자 질문이 주어집니다. 최신 질문이 대화 기록의 맥락을
참조한다면, 대화 기록 없이도 이해할 수 있는 독립적인 질문으로 재구성하세요.
질문에 답하지 마세요. 재구성이 필요하면 재구성한 질문만, 필요 없으면 원래
질문을 그대로 출력하세요.`

// Reformulator produces the retrieval query for a turn.
// The reformulated text is used only for retrieval; session history always
// records the user's original message.
type Reformulator struct {
	client *Client
	prompt string
	logger *slog.Logger
}

// NewReformulator creates a history-aware query reformulator.
func NewReformulator(client *Client, promptOverride string, logger *slog.Logger) (*Reformulator, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	prompt := defaultReformulatePrompt
	if promptOverride != "" {
		prompt = promptOverride
	}
	return &Reformulator{client: client, prompt: prompt, logger: logger}, nil
}

// Reformulate returns a standalone version of question.
// With no history there is nothing to contextualize, so the question passes
// through without a model round-trip.
func (r *Reformulator) Reformulate(ctx context.Context, question string, history []session.Turn) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	text, err := r.client.CompleteChat(ctx, r.prompt, history, question)
	if err != nil {
		return "", fmt.Errorf("reformulating question: %w", err)
	}
	if text == "" {
		return question, nil
	}

	if text != question {
		r.logger.Debug("reformulated question",
			"original_length", len(question), "reformulated_length", len(text))
	}
	return text, nil
}
