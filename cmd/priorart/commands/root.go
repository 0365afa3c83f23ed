// Package commands defines all Cobra CLI commands for the priorart binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/priorart-go/internal/audit"
	"github.com/54b3r/priorart-go/internal/config"
	"github.com/54b3r/priorart-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "priorart",
		Short: "Prior-art search and novelty analysis for invention ideas",
		Long: `priorart compares an invention description against a corpus of patent
records, ranks the most similar ones, and asks a generative model for a
difference and novelty assessment plus a narrative report.

Retrieval tries the vector index first, falls back to keyword matching,
and finally to a fixed sample, so every query receives candidates even
when the embedding backend or the model is unavailable.

Settings come from environment variables, an optional .env file, and an
optional YAML file (~/.priorart/config.yaml). Environment variables win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is the normal case.
			_ = godotenv.Load()

			log := logging.New()
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			// Rebuild the logger: the YAML file may have set LOG_LEVEL.
			audit.LogCommandStart(cmd.Context(), logging.New(), cmd.CommandPath(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.priorart/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAnalyzeCmd(),
		NewSearchCmd(),
		NewIndexCmd(),
		NewVersionCmd(),
	)
	return root
}
