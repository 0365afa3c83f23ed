package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/server"
)

// NewServeCmd constructs the `priorart serve` command, which starts the HTTP
// gateway.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the priorart HTTP API",
		Long: `Start the priorart HTTP API.

Endpoints:
  POST /api/analyze        full pipeline: similar records, analysis, report
  POST /api/search         retrieval only
  GET  /api/analyses       recently persisted analyses
  GET  /api/analyses/{id}  one persisted analysis
  GET  /api/health         liveness
  GET  /api/ready          dependency readiness
  GET  /metrics            Prometheus metrics

Set PRIORART_API_KEY to require a Bearer token on the /api/analyze,
/api/search and /api/analyses routes.

Examples:
  priorart serve
  priorart serve --port 9090
  MODEL_PROVIDER=openai INDEX_BACKEND=qdrant priorart serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SERVER_PORT", port)
			}

			a, err := buildApp(ctx, log, bootOptions{
				withModel: true,
				withStore: true,
				metrics:   prometheus.DefaultRegisterer,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			srv, err := server.New(a.orch, a.engine, a.analyses, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        a.pingers,
				APIKey:         os.Getenv("PRIORART_API_KEY"),
				CORSOrigin:     os.Getenv("SERVER_CORS_ORIGIN"),
				AnalyzeTimeout: getEnvDuration("SERVER_ANALYZE_TIMEOUT", 5*time.Minute),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.String("host", host), slog.Int("port", port))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
