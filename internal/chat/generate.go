package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/regulation"
	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// Fixed user-visible sentences. These are part of the product contract and
// must not be reworded; clients and tests match on them.
const (
	// RefusalGuardrail is the only answer for off-domain questions.
	RefusalGuardrail = "죄송합니다. 저는 K리그 및 KBO 규정 전문 에이전트입니다. 축구나 야구 규정에 대해서만 답변해 드릴 수 있습니다. 🙇‍♂️"

	// RefusalNoProvision is the only answer when the retrieved context does
	// not contain the provision asked about.
	RefusalNoProvision = "죄송합니다. 제공된 규정에서 명확한 조항을 찾을 수 없습니다."

	// AnswerUnsupportedSport is the canned answer for sports outside the
	// indexed corpus (other-sport route).
	AnswerUnsupportedSport = "죄송합니다. 해당 종목의 규정은 아직 지원하지 않습니다. 현재는 K리그와 KBO 규정만 답변해 드릴 수 있습니다."
)

// defaultAnswerPrompt is the grounded-answer contract enforced on the model.
// The %s placeholder receives the formatted retrieval context.
//
// Rule 6 exists because models otherwise copy amounts and article numbers
// from earlier turns; history is for topical continuity, never fact sourcing.
const defaultAnswerPrompt = `당신은 K리그와 KBO 규정 전문 상담 에이전트 '책첵'입니다.

규칙:
1. 축구나 야구 규정과 관련 없는 질문에는 오직 다음 문장으로만 답하세요: "` + RefusalGuardrail + `"
2. 반드시 아래 [Context]에 포함된 내용만 근거로 답변하세요. [Context]에서 답을 찾을 수 없으면 오직 다음 문장으로만 답하세요: "` + RefusalNoProvision + `"
3. 조항 번호(예: 제12조)는 [Context]에 실제로 등장할 때만 인용하세요. 조항 번호를 지어내지 마세요.
4. 마크다운 제목과 목록을 활용해, 추가 확인 없이 바로 읽을 수 있는 답변을 작성하세요.
5. "해당 규정을 직접 확인해 보세요" 같은 모호한 안내로 답변을 대신하지 마세요.
6. 이전 대화에 등장한 금액, 수치, 조항 번호를 그대로 가져오지 마세요. 모든 수치와 규정 사실은 이번 [Context]에서만 가져와야 합니다.

[Context]
%s`

// Result is the generator outcome. Refused is computed here, once, against
// the fixed refusal sentences; callers never do their own substring matching.
type Result struct {
	Text    string
	Refused bool
}

// Generator produces grounded answers from retrieved context.
type Generator struct {
	client *Client
	prompt string
	logger *slog.Logger
}

// NewGenerator creates an answer generator. promptOverride replaces the
// built-in system prompt when non-empty; it must contain one %s placeholder
// for the context block.
func NewGenerator(client *Client, promptOverride string, logger *slog.Logger) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	prompt := defaultAnswerPrompt
	if promptOverride != "" {
		prompt = promptOverride
	}
	return &Generator{client: client, prompt: prompt, logger: logger}, nil
}

// Generate answers question from the retrieved chunks and prior turns.
func (g *Generator) Generate(ctx context.Context, question string, chunks []knowledge.Chunk, history []session.Turn) (Result, error) {
	system := fmt.Sprintf(g.prompt, formatContext(chunks))

	text, err := g.client.CompleteChat(ctx, system, history, question)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	res := Result{Text: text, Refused: isRefusal(text)}
	g.logger.Debug("generated answer",
		"refused", res.Refused, "answer_length", len(res.Text), "chunks", len(chunks))
	return res, nil
}

// formatContext renders chunks as the [Context] block. Each chunk is headed
// by its resolved document title and one-based page so the model can cite
// documents by name.
func formatContext(chunks []knowledge.Chunk) string {
	if len(chunks) == 0 {
		return "(검색된 규정 없음)"
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[출처: %s, %d페이지]\n", regulation.DisplayName(c.Source), c.Page+1)
		b.WriteString(c.Content)
	}
	return b.String()
}

// isRefusal reports whether text is one of the fixed refusal answers.
// Substring rather than equality: models occasionally pad the fixed sentence
// with whitespace or a stray markdown wrapper.
func isRefusal(text string) bool {
	if !strings.Contains(text, "죄송합니다") {
		return false
	}
	return strings.Contains(text, "에이전트") ||
		strings.Contains(text, "명확한 조항을 찾을 수 없습니다")
}
