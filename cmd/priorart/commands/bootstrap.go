package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/54b3r/priorart-go/internal/analysis"
	"github.com/54b3r/priorart-go/internal/corpus"
	"github.com/54b3r/priorart-go/internal/embedder"
	"github.com/54b3r/priorart-go/internal/pipeline"
	"github.com/54b3r/priorart-go/internal/provider"
	"github.com/54b3r/priorart-go/internal/report"
	"github.com/54b3r/priorart-go/internal/retrieval"
	"github.com/54b3r/priorart-go/internal/server"
	"github.com/54b3r/priorart-go/internal/store"
	"github.com/54b3r/priorart-go/internal/tracing"
	"github.com/54b3r/priorart-go/internal/vectorindex"
)

// Index backends accepted by INDEX_BACKEND.
const (
	indexFlat   = "flat"
	indexQdrant = "qdrant"
	indexNone   = "none"
)

// bootOptions selects which optional parts buildApp constructs.
type bootOptions struct {
	// withModel builds the chat model and the analysis and report stages.
	withModel bool
	// withStore opens the analysis store.
	withStore bool
	// metrics receives pipeline metrics; nil keeps them private.
	metrics prometheus.Registerer
}

// app holds every constructed component. Optional parts are nil when
// unavailable; the retrieval engine and orchestrator are always present.
type app struct {
	corpus      *corpus.Store
	embedder    embedder.Embedder
	embedderCfg *embedder.Config
	engine      *retrieval.Engine
	chat        model.BaseChatModel
	providerCfg *provider.Config
	orch        *pipeline.Orchestrator
	analyses    store.AnalysisStore
	pingers     []server.Pinger
	closers     []func()
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp constructs the pipeline from the environment. Only programming
// errors are returned: every missing dependency degrades a capability and
// is logged instead.
func buildApp(ctx context.Context, log *slog.Logger, opts bootOptions) (*app, error) {
	a := &app{}

	if handler, flush, ok := tracing.Setup(tracing.ConfigFromEnv()); ok {
		callbacks.AppendGlobalHandlers(handler)
		a.closers = append(a.closers, flush)
		log.Info("langfuse tracing enabled")
	}

	a.corpus = loadCorpus(log)
	a.buildEmbedder(ctx, log)

	caps := retrieval.Capabilities{Vector: a.buildIndex(ctx, log)}
	retrievalCfg := retrieval.ConfigFromEnv()
	a.engine = retrieval.New(a.corpus, caps, retrievalCfg)
	a.pingers = append(a.pingers, server.NewCorpusPinger(a.engine))
	log.Info("retrieval engine ready",
		slog.Int("records", a.engine.StoreSize()),
		slog.Bool("vector", caps.HasVector()),
	)

	var (
		analyzer pipeline.Analyzer
		writer   pipeline.ReportWriter
	)
	if opts.withModel {
		if err := a.buildModel(ctx, log); err != nil {
			log.Warn("chat model unavailable, analysis and report will use fallbacks", slog.Any("error", err))
		}
		if a.chat != nil {
			analyzer = analysis.New(a.chat, analysisConfig(a.providerCfg))
			writer = report.New(a.chat, reportOptions(a.providerCfg)...)
		}
	}

	orch, err := pipeline.New(a.engine, analyzer, writer, pipeline.Config{
		TopK:            retrievalCfg.TopK,
		MetricsRegistry: opts.metrics,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orch = orch

	if opts.withStore {
		a.openStore(log)
	}
	return a, nil
}

// analysisConfig carries the shared tuning into the analysis stage, which is
// the only stage that samples at the configured low temperature.
func analysisConfig(pc *provider.Config) analysis.Config {
	temp, topP := pc.Tuning.Temperature, pc.Tuning.TopP
	return analysis.Config{
		Temperature:      &temp,
		TopP:             &topP,
		MaxTokens:        pc.Tuning.MaxTokens,
		DisableSampling:  !pc.SupportsSampling(),
		MaxContextTokens: getEnvInt("ANALYSIS_MAX_CONTEXT_TOKENS", 0),
	}
}

// reportOptions leaves sampling at the model's defaults and only bounds the
// length of the narrative.
func reportOptions(pc *provider.Config) []model.Option {
	if pc.Tuning.MaxTokens <= 0 {
		return nil
	}
	return []model.Option{model.WithMaxTokens(pc.Tuning.MaxTokens)}
}

// loadCorpus reads CORPUS_PATH (default patents.csv), limited to
// CORPUS_LIMIT rows. A failed load returns nil.
func loadCorpus(log *slog.Logger) *corpus.Store {
	path := getEnvOrDefault("CORPUS_PATH", "patents.csv")
	s, err := corpus.LoadCSV(path, getEnvInt("CORPUS_LIMIT", 0))
	if err != nil {
		log.Warn("corpus unavailable, serving placeholder samples", slog.Any("error", err))
		return nil
	}
	log.Info("corpus loaded", slog.String("path", path), slog.Int("records", s.Len()))
	return s
}

// buildEmbedder constructs the embedder, wrapped with the Redis cache when
// REDIS_URL is set.
func (a *app) buildEmbedder(ctx context.Context, log *slog.Logger) {
	emb, cfg, err := embedder.NewFromEnv(ctx)
	switch {
	case errors.Is(err, embedder.ErrDisabled):
		log.Info("embedding disabled, vector search off")
		return
	case err != nil:
		log.Warn("embedder unavailable, vector search off", slog.Any("error", err))
		return
	}
	cfg.WarnIfChatModel(log)
	a.embedder, a.embedderCfg = emb, cfg

	url := os.Getenv("REDIS_URL")
	if url == "" {
		return
	}
	ropts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("invalid REDIS_URL, embedding cache disabled", slog.Any("error", err))
		return
	}
	rdb := redis.NewClient(ropts)
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.pingers = append(a.pingers, server.NewRedisPinger(rdb))
	a.embedder = embedder.NewCached(emb, rdb, embedder.CacheConfig{
		Namespace: cfg.Namespace(),
		TTL:       getEnvDuration("EMBEDDING_CACHE_TTL", 0),
	})
	log.Info("embedding cache enabled", slog.String("addr", ropts.Addr))
}

// buildOptions reads INDEX_BATCH_SIZE and INDEX_WORKERS.
func buildOptions() vectorindex.BuildOptions {
	return vectorindex.BuildOptions{
		BatchSize: getEnvInt("INDEX_BATCH_SIZE", 0),
		Workers:   getEnvInt("INDEX_WORKERS", 0),
	}
}

// buildIndex returns the configured vector index, or nil when the corpus,
// the embedder or the index itself is unavailable.
func (a *app) buildIndex(ctx context.Context, log *slog.Logger) vectorindex.Index {
	if a.corpus == nil || a.embedder == nil {
		return nil
	}
	switch backend := getEnvOrDefault("INDEX_BACKEND", indexFlat); backend {
	case indexNone:
		log.Info("vector index disabled via INDEX_BACKEND=none")
		return nil
	case indexQdrant:
		q, err := a.openQdrant(ctx, log, true)
		if err != nil {
			log.Warn("qdrant index unavailable, vector search off", slog.Any("error", err))
			return nil
		}
		return q
	case indexFlat:
		f, err := a.loadOrBuildFlat(ctx, log)
		if err != nil {
			log.Warn("flat index unavailable, vector search off", slog.Any("error", err))
			return nil
		}
		return f
	default:
		log.Warn("unknown INDEX_BACKEND, vector search off", slog.String("backend", backend))
		return nil
	}
}

// loadOrBuildFlat loads INDEX_PATH when it matches the corpus and the
// embedding model, otherwise embeds every title and saves the result.
func (a *app) loadOrBuildFlat(ctx context.Context, log *slog.Logger) (*vectorindex.Flat, error) {
	path := getEnvOrDefault("INDEX_PATH", defaultIndexPath())
	ns := a.embedderCfg.Namespace()

	f, err := vectorindex.LoadFile(path, ns, a.corpus.Len(), a.embedder)
	if err == nil {
		log.Info("flat index loaded", slog.String("path", path), slog.Int("vectors", f.Len()))
		return f, nil
	}
	log.Info("flat index not reusable, rebuilding", slog.String("reason", err.Error()))

	f, err = vectorindex.BuildFlat(ctx, a.embedder, a.corpus.Titles(), buildOptions())
	if err != nil {
		return nil, err
	}
	if err := f.Save(path, ns); err != nil {
		log.Warn("flat index built but not saved", slog.Any("error", err))
	}
	return f, nil
}

// openQdrant connects to Qdrant. When sync is set and the collection size
// differs from the corpus, every title is re-embedded and upserted.
func (a *app) openQdrant(ctx context.Context, log *slog.Logger, sync bool) (*vectorindex.Qdrant, error) {
	cfg := &vectorindex.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "priorart-titles"),
		VectorSize: uint64(max(a.embedderCfg.Dimensions, 0)), //nolint:gosec // clamped non-negative
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	}
	q, err := vectorindex.NewQdrant(ctx, cfg, a.embedder)
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	a.closers = append(a.closers, func() { _ = q.Close() })
	a.pingers = append(a.pingers, server.NewQdrantPinger(q.Client()))

	if !sync {
		return q, nil
	}
	n, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == a.corpus.Len() {
		log.Info("qdrant collection up to date", slog.String("collection", cfg.Collection), slog.Int("points", n))
		return q, nil
	}
	if err := syncQdrant(ctx, log, q, a.embedder, a.corpus.Titles()); err != nil {
		return nil, err
	}
	return q, nil
}

// syncQdrant embeds titles and upserts them as points keyed by row.
func syncQdrant(ctx context.Context, log *slog.Logger, q *vectorindex.Qdrant, emb embedder.Embedder, titles []string) error {
	log.Info("embedding titles for qdrant", slog.Int("titles", len(titles)))
	vecs, err := vectorindex.EmbedAll(ctx, emb, titles, buildOptions())
	if err != nil {
		return err
	}
	return q.Upsert(ctx, titles, vecs)
}

// buildModel constructs the chat model and its readiness pinger.
func (a *app) buildModel(ctx context.Context, log *slog.Logger) error {
	cfg := provider.ConfigFromEnv()
	a.providerCfg = cfg
	m, err := provider.New(ctx, cfg)
	if err != nil {
		a.pingers = append(a.pingers, server.NewLLMPinger(nil, nil, string(cfg.Backend)))
		return err
	}
	a.chat = m
	a.pingers = append(a.pingers, server.NewLLMPinger(m, provider.NewHealthCheck(cfg), string(cfg.Backend)))
	log.Info("chat model ready",
		slog.String("provider", string(cfg.Backend)),
		slog.String("model", cfg.ModelName()),
	)
	return nil
}

// openStore opens the analysis store at PRIORART_DB (default
// ~/.priorart/analyses.db). "disabled" or any failure leaves it nil.
func (a *app) openStore(log *slog.Logger) {
	path := os.Getenv("PRIORART_DB")
	if path == "disabled" {
		log.Info("analysis store disabled via PRIORART_DB=disabled")
		return
	}
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("analysis store: could not resolve default path, disabling", slog.Any("error", err))
			return
		}
		path = p
	}
	s, err := store.Open(path)
	if err != nil {
		log.Warn("analysis store: failed to open, disabling", slog.Any("error", err))
		return
	}
	a.analyses = s
	a.pingers = append(a.pingers, s)
	a.closers = append(a.closers, func() { _ = s.Close() })
	log.Info("analysis store opened", slog.String("path", path))
}
