package chat

import (
	"unicode/utf8"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/regulation"
)

// Citation is one display-ready source reference.
type Citation struct {
	File    string `json:"file"`     // resolved display name
	RawFile string `json:"raw_file"` // base file name of the source document
	Page    int    `json:"page"`     // one-based page for display
	Preview string `json:"preview"`  // bounded prefix of the chunk content
}

// Attribute converts retrieved chunks into the citation list for a response.
//
// Refused answers never carry citations. Otherwise chunks are mapped in
// retrieval order, deduplicated by (display name, one-based page) keeping the
// first occurrence, and truncated to maxCitations. Deterministic: the same
// chunk sequence always yields the same citation list.
func Attribute(chunks []knowledge.Chunk, refused bool, maxCitations, previewLen int) []Citation {
	citations := []Citation{}
	if refused {
		return citations
	}

	type key struct {
		file string
		page int
	}
	seen := make(map[key]struct{}, len(chunks))

	for _, c := range chunks {
		display := regulation.DisplayName(c.Source)
		page := c.Page + 1

		k := key{file: display, page: page}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		citations = append(citations, Citation{
			File:    display,
			RawFile: regulation.Base(c.Source),
			Page:    page,
			Preview: truncateRunes(c.Content, previewLen),
		})
		if len(citations) >= maxCitations {
			break
		}
	}

	return citations
}

// truncateRunes returns at most n runes of s. Rune-based so Korean text is
// never cut mid-character.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
