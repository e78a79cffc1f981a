package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teamcheckmate/chaekcheck/internal/app"
	"github.com/teamcheckmate/chaekcheck/internal/ingest"
)

var ingestBatchSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest [chunks.jsonl]",
	Short: "Load pre-chunked regulation records into the vector store",
	Long: `Ingest reads a JSONL file of regulation chunks (content, source, page)
produced by the PDF chunking pipeline, embeds each chunk, and upserts it
into the configured vector store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd.Context(), args[0])
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 32, "chunks per embedding batch")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(parent context.Context, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(parent, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexer, err := ingest.NewIndexer(a.Knowledge, ingestBatchSize, slog.Default())
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	n, err := indexer.Run(parent, path)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	fmt.Printf("Ingested %d chunks from %s\n", n, path)
	return nil
}
