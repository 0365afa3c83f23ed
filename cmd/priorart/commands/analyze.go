package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/store"
)

// NewAnalyzeCmd constructs the `priorart analyze` command, which runs the
// whole pipeline once and prints the result as JSON.
func NewAnalyzeCmd() *cobra.Command {
	var topK int
	var file string
	var save bool

	cmd := &cobra.Command{
		Use:   "analyze [idea text]",
		Short: "Analyse an invention idea against the corpus",
		Long: `Run retrieval, analysis and report generation for one idea and print
the combined result as JSON.

The idea is taken from the arguments, from --file, or from stdin when the
file is "-". It must be at least 10 characters long.

Examples:
  priorart analyze "battery management system for electric vehicles"
  priorart analyze --file idea.txt --top-k 10
  echo "a foldable solar charging umbrella" | priorart analyze --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query, err := readQuery(cmd.InOrStdin(), args, file)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx, log, bootOptions{withModel: true, withStore: save})
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			defer a.Close()

			out, err := a.orch.RunTopK(ctx, query, topK)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			if save && a.analyses != nil {
				payload, err := json.Marshal(out)
				if err != nil {
					return fmt.Errorf("analyze: encode result: %w", err)
				}
				id, err := a.analyses.Save(ctx, store.Analysis{
					Query:    out.Query,
					Novelty:  string(out.Analysis.Novelty),
					Strategy: string(out.Strategy),
					Report:   out.Report,
					Payload:  payload,
				})
				if err != nil {
					log.Warn("analyze: failed to persist analysis", slog.Any("error", err))
				} else {
					log.Info("analysis saved", slog.String("analysis_id", id))
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of similar records (default: RETRIEVAL_TOP_K or 5)")
	cmd.Flags().StringVarP(&file, "file", "f", "", `Read the idea from a file ("-" for stdin)`)
	cmd.Flags().BoolVar(&save, "save", false, "Persist the result to the analysis store")

	return cmd
}

// readQuery returns the idea text from file ("-" meaning stdin) or the
// joined arguments. Exactly one source must be given.
func readQuery(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case file != "" && len(args) > 0:
		return "", fmt.Errorf("give the idea either as arguments or with --file, not both")
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(b), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("an idea is required: pass it as arguments or with --file")
	}
}
