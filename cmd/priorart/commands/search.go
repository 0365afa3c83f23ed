package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/priorart-go/internal/logging"
)

// NewSearchCmd constructs the `priorart search` command, which runs retrieval
// only. No chat model is contacted.
func NewSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List corpus records similar to a query",
		Long: `Run the retrieval stage only and print the ranked matches as JSON,
together with the strategy (vector, lexical or sample) that served them.

Examples:
  priorart search "wind turbine blade coating"
  priorart search -k 10 "hinged beverage container lid"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, err := buildApp(ctx, log, bootOptions{})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.Close()

			q, err := a.orch.Validate(strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			res := a.engine.FindSimilar(ctx, q, topK)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"query":              q,
				"retrieval_strategy": res.Value.Strategy,
				"status":             res.Status,
				"similar_records":    res.Value.Matches,
			})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of records (default: RETRIEVAL_TOP_K or 5)")

	return cmd
}
