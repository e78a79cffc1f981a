// Package chat implements the question-answering pipeline: intent routing,
// history-aware query reformulation, retrieval, grounded answer generation
// with a refusal policy, and source attribution.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teamcheckmate/chaekcheck/internal/retrieval"
	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// Answer is the final result of one request.
type Answer struct {
	Text      string
	Citations []Citation
	Refused   bool
	Elapsed   time.Duration
}

// Config configures the pipeline orchestrator.
type Config struct {
	Router       *Router // nil disables routing; every message proceeds to retrieval
	Reformulator *Reformulator
	Searcher     retrieval.Searcher
	Generator    *Generator
	Sessions     *session.Store
	MaxCitations int
	PreviewLen   int
	Logger       *slog.Logger // nil = slog.Default()
}

func (c *Config) validate() error {
	if c.Reformulator == nil {
		return fmt.Errorf("reformulator is required")
	}
	if c.Searcher == nil {
		return fmt.Errorf("searcher is required")
	}
	if c.Generator == nil {
		return fmt.Errorf("generator is required")
	}
	if c.Sessions == nil {
		return fmt.Errorf("session store is required")
	}
	if c.MaxCitations < 1 {
		return fmt.Errorf("max citations must be positive, got %d", c.MaxCitations)
	}
	if c.PreviewLen < 1 {
		return fmt.Errorf("preview length must be positive, got %d", c.PreviewLen)
	}
	return nil
}

// Agent orchestrates the pipeline per request. Immutable after construction;
// safe for concurrent use.
type Agent struct {
	router       *Router
	reformulator *Reformulator
	searcher     retrieval.Searcher
	generator    *Generator
	sessions     *session.Store
	maxCitations int
	previewLen   int
	logger       *slog.Logger
}

// New creates the pipeline orchestrator.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{
		router:       cfg.Router,
		reformulator: cfg.Reformulator,
		searcher:     cfg.Searcher,
		generator:    cfg.Generator,
		sessions:     cfg.Sessions,
		maxCitations: cfg.MaxCitations,
		previewLen:   cfg.PreviewLen,
		logger:       cfg.Logger,
	}, nil
}

// Ask answers one user message within a session.
//
// Stages run strictly in order: route → reformulate → retrieve → generate →
// attribute → record. The history snapshot is taken once up front; the
// session lock is never held across a model or index call. Only answered
// (non-refused) turns are recorded, so a refusal cannot anchor a later
// reformulation on its own text.
func (a *Agent) Ask(ctx context.Context, sessionID, message string) (*Answer, error) {
	start := time.Now()

	history := a.sessions.Get(sessionID)
	turns := history.Snapshot()

	if a.router != nil {
		route, err := a.router.Classify(ctx, message)
		if err != nil {
			return nil, err
		}

		switch route {
		case RouteUnrelated:
			a.logger.Info("refused off-domain message", "session_id", sessionID)
			return &Answer{
				Text:      RefusalGuardrail,
				Citations: []Citation{},
				Refused:   true,
				Elapsed:   time.Since(start),
			}, nil
		case RouteOtherSport:
			a.logger.Info("refused unsupported sport", "session_id", sessionID)
			return &Answer{
				Text:      AnswerUnsupportedSport,
				Citations: []Citation{},
				Refused:   true,
				Elapsed:   time.Since(start),
			}, nil
		}
	}

	query, err := a.reformulator.Reformulate(ctx, message, turns)
	if err != nil {
		return nil, err
	}

	chunks, err := a.searcher.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	result, err := a.generator.Generate(ctx, message, chunks, turns)
	if err != nil {
		return nil, err
	}

	citations := Attribute(chunks, result.Refused, a.maxCitations, a.previewLen)

	if !result.Refused {
		history.Append(message, result.Text)
	}

	elapsed := time.Since(start)
	a.logger.Info("answered message",
		"session_id", sessionID,
		"refused", result.Refused,
		"citations", len(citations),
		"elapsed", elapsed,
	)

	return &Answer{
		Text:      result.Text,
		Citations: citations,
		Refused:   result.Refused,
		Elapsed:   elapsed,
	}, nil
}
