package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
)

// Completer produces a text completion for a prompt.
// Satisfied by the chat package's model client; defined here so retrieval
// does not depend on how completions are produced.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// expandPromptTemplate asks the model for search-ready paraphrases.
// One query per line keeps parsing trivial; numbering is stripped defensively
// because models add it anyway.
const expandPromptTemplate = `Generate %d alternative search queries for the question below.
The queries target a vector index of Korean professional sports regulations
(K리그 football and KBO baseball rule documents), so keep them in Korean and
rephrase using vocabulary a regulation document would use.

Output one query per line, nothing else.

Question: %s`

// numberedLineRe matches leading list numbering such as "1. " or "2) ".
var numberedLineRe = regexp.MustCompile(`^\d+[\.\)]\s*`)

// MultiQuery retrieves over several paraphrases of one query and unions the
// results. Single-query retrieval under-covers when question phrasing
// diverges from document phrasing; the fan-out trades latency for recall.
type MultiQuery struct {
	inner           Searcher
	completer       Completer
	expansions      int
	includeOriginal bool
	logger          *slog.Logger
}

// NewMultiQuery wraps inner with paraphrase expansion.
func NewMultiQuery(inner Searcher, completer Completer, expansions int, includeOriginal bool, logger *slog.Logger) (*MultiQuery, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner searcher is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if expansions < 1 {
		return nil, fmt.Errorf("expansions must be positive, got %d", expansions)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiQuery{
		inner:           inner,
		completer:       completer,
		expansions:      expansions,
		includeOriginal: includeOriginal,
		logger:          logger,
	}, nil
}

// Search expands the query into paraphrases, retrieves for each in parallel,
// and unions the result sets deduplicated by chunk identity.
func (m *MultiQuery) Search(ctx context.Context, query string) ([]knowledge.Chunk, error) {
	queries, err := m.expand(ctx, query)
	if err != nil {
		// Expansion is an optimization; a failed expansion degrades to the
		// original query rather than failing the request.
		m.logger.Warn("query expansion failed, using original query", "error", err)
		queries = []string{query}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []knowledge.Chunk
		firstErr error
	)

	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			chunks, err := m.inner.Search(ctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("retrieving for %q: %w", q, err)
				}
				return
			}
			results = append(results, chunks...)
		}(q)
	}
	wg.Wait()

	if firstErr != nil && len(results) == 0 {
		return nil, firstErr
	}

	deduped := dedupeChunks(results)
	m.logger.Debug("multi-query retrieval complete",
		"queries", len(queries), "raw", len(results), "unique", len(deduped))
	return deduped, nil
}

// expand asks the model for paraphrases and returns the query list to run.
func (m *MultiQuery) expand(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(expandPromptTemplate, m.expansions, query)

	text, err := m.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating paraphrases: %w", err)
	}

	var queries []string
	if m.includeOriginal {
		queries = append(queries, query)
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(numberedLineRe.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" || line == query {
			continue
		}
		queries = append(queries, line)
		if len(queries) >= m.expansions+1 {
			break
		}
	}

	if len(queries) == 0 {
		queries = []string{query}
	}
	return queries, nil
}

// dedupeChunks unions chunks by identity (content, source, page), keeping
// first-seen order.
func dedupeChunks(chunks []knowledge.Chunk) []knowledge.Chunk {
	type key struct {
		content string
		source  string
		page    int
	}
	seen := make(map[key]struct{}, len(chunks))
	out := make([]knowledge.Chunk, 0, len(chunks))
	for _, c := range chunks {
		k := key{content: c.Content, source: c.Source, page: c.Page}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
