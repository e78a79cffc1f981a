package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Route is the intent label assigned to a raw user message.
type Route string

// The closed label set. football and baseball proceed to retrieval;
// other-sport and unrelated short-circuit with canned answers.
const (
	RouteFootball   Route = "football"
	RouteBaseball   Route = "baseball"
	RouteOtherSport Route = "other-sport"
	RouteUnrelated  Route = "unrelated"
)

// defaultRouterPrompt classifies the message before any retrieval runs.
// The label tokens stay in English so parsing does not depend on model
// behavior around Korean output.
const defaultRouterPrompt = `사용자 메시지를 아래 분류 중 하나로 분류하세요.

- football: K리그 등 축구 규정에 관한 질문
- baseball: KBO 등 야구 규정에 관한 질문
- other-sport: 축구와 야구가 아닌 다른 스포츠에 관한 질문
- unrelated: 스포츠 규정과 무관한 메시지

분류 라벨 하나만 출력하세요. 다른 말은 하지 마세요.

메시지: %s`

// Router classifies raw user messages into the closed Route set.
type Router struct {
	client *Client
	prompt string
	logger *slog.Logger
}

// NewRouter creates an intent router. promptOverride replaces the built-in
// classification prompt when non-empty; it must contain one %s placeholder
// for the message.
func NewRouter(client *Client, promptOverride string, logger *slog.Logger) (*Router, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	prompt := defaultRouterPrompt
	if promptOverride != "" {
		prompt = promptOverride
	}
	return &Router{client: client, prompt: prompt, logger: logger}, nil
}

// Classify routes a message. A model failure or a label outside the closed
// set yields ErrClassification; the caller propagates it instead of guessing,
// so guardrail regressions surface as errors rather than off-topic answers.
func (r *Router) Classify(ctx context.Context, message string) (Route, error) {
	text, err := r.client.Complete(ctx, fmt.Sprintf(r.prompt, message))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrClassification, err)
	}

	label := parseRouteLabel(text)
	switch label {
	case RouteFootball, RouteBaseball, RouteOtherSport, RouteUnrelated:
		r.logger.Debug("classified message", "route", label)
		return label, nil
	default:
		return "", fmt.Errorf("%w: unrecognized label %q", ErrClassification, truncateForLog(text, 80))
	}
}

// parseRouteLabel normalizes model output to a candidate label.
// Models wrap labels in fences, quotes, or trailing punctuation often enough
// that stripping all three is required for a stable closed-set parse.
func parseRouteLabel(text string) Route {
	s := stripCodeFences(text)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'.`+" \n")
	// Keep only the first line in case the model explained itself anyway.
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}
	return Route(s)
}

// truncateForLog shortens s to at most n bytes for error messages.
func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
