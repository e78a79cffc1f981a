// Package ingest loads pre-chunked regulation records into the chunk store.
//
// Chunking and embedding-model choice belong to the external PDF pipeline;
// this package only consumes its output: JSONL records keyed by source file
// and zero-based page. Runs are serialized with a file lock so two ingest
// invocations cannot interleave writes.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
)

// maxLineBytes bounds one JSONL line (1 MB; chunks are ~500 characters).
const maxLineBytes = 1 << 20

// lockRetryDelay is the poll interval while waiting for a concurrent run.
const lockRetryDelay = 250 * time.Millisecond

// Record is one chunk as emitted by the ingestion pipeline.
// Page is zero-based and may arrive as a non-integer numeric.
type Record struct {
	Content string      `json:"content"`
	Source  string      `json:"source"`
	Page    json.Number `json:"page"`
}

// ReadRecords parses JSONL chunk records. Blank lines are skipped; a
// malformed line fails the whole read with its line number.
func ReadRecords(r io.Reader) ([]knowledge.Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var chunks []knowledge.Chunk
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: parsing record: %w", line, err)
		}
		if rec.Content == "" {
			return nil, fmt.Errorf("line %d: record has empty content", line)
		}
		if rec.Source == "" {
			return nil, fmt.Errorf("line %d: record has empty source", line)
		}

		chunks = append(chunks, knowledge.Chunk{
			Content: rec.Content,
			Source:  rec.Source,
			Page:    knowledge.NormalizePage(rec.Page.String()),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	return chunks, nil
}

// Indexer loads chunk records into a store in batches.
type Indexer struct {
	store     knowledge.Store
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an indexer. batchSize <= 0 defaults to 32.
func NewIndexer(store knowledge.Store, batchSize int, logger *slog.Logger) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, batchSize: batchSize, logger: logger}, nil
}

// Run ingests the JSONL file at path and returns the number of chunks added.
// Holds a process-exclusive file lock for the duration of the run.
func (ix *Indexer) Run(ctx context.Context, path string) (int, error) {
	lock := flock.New(lockPath())
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return 0, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return 0, fmt.Errorf("ingest lock unavailable")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			ix.logger.Warn("releasing ingest lock", "error", err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening chunk file: %w", err)
	}
	defer f.Close()

	chunks, err := ReadRecords(f)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	start := time.Now()
	for i := 0; i < len(chunks); i += ix.batchSize {
		end := min(i+ix.batchSize, len(chunks))
		if err := ix.store.Add(ctx, chunks[i:end]); err != nil {
			return i, fmt.Errorf("adding batch at offset %d: %w", i, err)
		}
		ix.logger.Debug("indexed batch", "offset", i, "size", end-i)
	}

	ix.logger.Info("ingest complete",
		"file", path, "chunks", len(chunks), "elapsed", time.Since(start))
	return len(chunks), nil
}

// lockPath returns the shared lock file guarding ingest runs.
func lockPath() string {
	return filepath.Join(os.TempDir(), "chaekcheck-ingest.lock")
}
