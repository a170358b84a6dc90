package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coderTtxi12/model-rag/internal/app"
	"github.com/coderTtxi12/model-rag/internal/config"
	"github.com/coderTtxi12/model-rag/internal/ingest"
)

var (
	ingestFile       string
	ingestCollection string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest CSV sources into the vector store",
	Long: `Ingest CSV knowledge bases into the vector store.

Without flags, every source listed in the configuration is ingested. With
--file and --collection, a single CSV is ingested into the named collection.

Ingestion takes an exclusive lock on the index; stop any running server
first when using the embedded store.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "CSV file to ingest")
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", "", "target collection for --file")
	ingestCmd.MarkFlagsRequiredTogether("file", "collection")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	sources := sourcesFromFlags(cfg)
	if len(sources) == 0 {
		return errors.New("nothing to ingest: configure sources or pass --file and --collection")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger, app.ModeIngest)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ing := ingest.New(a.Store, cfg.CleanColumns, logger)
	sum := ing.IngestAll(ctx, sources)

	logger.Info("ingestion finished",
		"sources", sum.Sources,
		"failed", sum.Failed,
		"passages", sum.Passages,
	)

	if sum.Failed > 0 && sum.Sources == 0 {
		return fmt.Errorf("all %d sources failed to ingest", sum.Failed)
	}
	return nil
}

// sourcesFromFlags resolves what to ingest: an explicit --file/--collection
// pair wins over the configured source list.
func sourcesFromFlags(cfg *config.Config) []ingest.Source {
	if ingestFile != "" {
		return []ingest.Source{{File: ingestFile, Collection: ingestCollection}}
	}
	sources := make([]ingest.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, ingest.Source{File: s.File, Collection: s.Collection})
	}
	return sources
}
