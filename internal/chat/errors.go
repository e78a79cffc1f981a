package chat

import "errors"

// Pipeline stage errors. Checked with errors.Is() at the transport boundary.
// No stage substitutes a default answer on failure; the generator's in-band
// refusal sentence is a successful outcome, not an error.
var (
	// ErrClassification indicates the intent router returned an unparseable
	// or unknown label. Propagated, never defaulted.
	ErrClassification = errors.New("intent classification failed")

	// ErrRetrieval indicates the vector index was unreachable or returned
	// malformed results.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration indicates the language model call failed.
	ErrGeneration = errors.New("answer generation failed")
)
