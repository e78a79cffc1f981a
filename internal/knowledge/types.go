// Package knowledge stores and searches regulation document chunks.
//
// Chunks are produced by the external ingestion pipeline (PDF → text slices)
// and stored with their embedding vector. Two backends implement the Store
// interface: a PostgreSQL + pgvector store for production and an in-memory
// chromem-go store for development and tests.
package knowledge

import (
	"math"
	"strconv"
)

// Chunk is the unit of retrieval: a bounded slice of one regulation document.
// Page is zero-based as delivered by the ingestion pipeline; display
// normalization to one-based numbering happens at citation time, not here.
type Chunk struct {
	ID      string
	Content string
	Source  string // raw document identifier, e.g. "football_kleague_game_2018.pdf"
	Page    int    // zero-based page within the source document
	Score   float32
}

// NormalizePage converts a metadata page value of unknown numeric shape to a
// zero-based int. Index backends round-trip metadata through JSON, so an
// integer page can come back as float64 (and occasionally as a string).
// Non-integer values are floored; unparseable values yield 0.
func NormalizePage(v any) int {
	switch p := v.(type) {
	case int:
		return p
	case int32:
		return int(p)
	case int64:
		return int(p)
	case float64:
		return int(math.Floor(p))
	case float32:
		return int(math.Floor(float64(p)))
	case string:
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(p, 64); err == nil {
			return int(math.Floor(f))
		}
	}
	return 0
}
