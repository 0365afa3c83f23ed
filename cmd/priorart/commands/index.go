package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/vectorindex"
)

// NewIndexCmd constructs the `priorart index` command group.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index over corpus titles",
	}
	cmd.AddCommand(newIndexBuildCmd())
	return cmd
}

// newIndexBuildCmd constructs `priorart index build`, which embeds every
// corpus title and writes the flat index file or fills the Qdrant collection.
func newIndexBuildCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed all corpus titles and write the vector index",
		Long: `Embed every corpus title and persist the vectors so that serve and
analyze start without re-embedding.

INDEX_BACKEND selects the target:
  flat    gob file at --output (default: INDEX_PATH or ~/.priorart/index.gob)
  qdrant  points in QDRANT_COLLECTION, keyed by corpus row

Embedding runs in batches of INDEX_BATCH_SIZE on INDEX_WORKERS concurrent
workers. Set REDIS_URL to reuse cached embeddings across builds.

Examples:
  priorart index build
  CORPUS_LIMIT=10000 priorart index build --output ./index.gob
  INDEX_BACKEND=qdrant priorart index build`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a := &app{corpus: loadCorpus(log)}
			defer a.Close()
			if a.corpus == nil {
				return errors.New("index build: corpus could not be loaded")
			}
			a.buildEmbedder(ctx, log)
			if a.embedder == nil {
				return errors.New("index build: no embedder configured")
			}

			start := time.Now()
			titles := a.corpus.Titles()
			switch backend := getEnvOrDefault("INDEX_BACKEND", indexFlat); backend {
			case indexFlat:
				if output == "" {
					output = getEnvOrDefault("INDEX_PATH", defaultIndexPath())
				}
				f, err := vectorindex.BuildFlat(ctx, a.embedder, titles, buildOptions())
				if err != nil {
					return fmt.Errorf("index build: %w", err)
				}
				if err := f.Save(output, a.embedderCfg.Namespace()); err != nil {
					return fmt.Errorf("index build: %w", err)
				}
				log.Info("flat index written",
					slog.String("path", output),
					slog.Int("vectors", f.Len()),
					slog.Int("dim", f.Dim()),
					slog.Duration("took", time.Since(start)),
				)
			case indexQdrant:
				q, err := a.openQdrant(ctx, log, false)
				if err != nil {
					return fmt.Errorf("index build: %w", err)
				}
				if err := syncQdrant(ctx, log, q, a.embedder, titles); err != nil {
					return fmt.Errorf("index build: %w", err)
				}
				log.Info("qdrant collection filled",
					slog.Int("points", len(titles)),
					slog.Duration("took", time.Since(start)),
				)
			default:
				return fmt.Errorf("index build: INDEX_BACKEND must be %q or %q, got %q", indexFlat, indexQdrant, backend)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Flat index file path (default: INDEX_PATH or ~/.priorart/index.gob)")

	return cmd
}
