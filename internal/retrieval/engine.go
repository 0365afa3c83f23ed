// Package retrieval finds corpus records similar to a query. It tries vector
// search first, falls back to lexical keyword matching, and finally to a
// deterministic sample, so a caller always receives at least one candidate.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/54b3r/priorart-go/internal/corpus"
	"github.com/54b3r/priorart-go/internal/lexical"
	"github.com/54b3r/priorart-go/internal/logging"
	"github.com/54b3r/priorart-go/internal/stage"
	"github.com/54b3r/priorart-go/internal/vectorindex"
)

// Strategy names the retrieval path that produced a result.
type Strategy string

const (
	// StrategyVector means results came from the nearest-neighbour index.
	StrategyVector Strategy = "vector"
	// StrategyLexical means results came from keyword matching.
	StrategyLexical Strategy = "lexical"
	// StrategySample means neither real strategy matched and a fixed sample
	// was returned.
	StrategySample Strategy = "sample"
)

// errNoVectorHits marks a vector search that ran but yielded nothing usable.
var errNoVectorHits = errors.New("retrieval: vector search returned no usable candidates")

// Capabilities describes which optional dependencies were available when the
// engine was built. It is fixed for the lifetime of the engine.
type Capabilities struct {
	// Vector is the nearest-neighbour index, or nil when vector search is
	// unavailable.
	Vector vectorindex.Index
}

// HasVector reports whether vector search is available.
func (c Capabilities) HasVector() bool { return c.Vector != nil }

// Result is the output of FindSimilar.
type Result struct {
	// Matches is never empty and carries dense ranks 1..n.
	Matches []corpus.Match
	// Strategy is the path that produced Matches.
	Strategy Strategy
}

// Engine composes the vector index, the lexical matcher and the sample
// fallback. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	// store is the corpus; nil means the corpus failed to load.
	store *corpus.Store
	// caps is the immutable capability set.
	caps Capabilities
	// lexical is the keyword matcher over store.
	lexical *lexical.Matcher
	// cfg holds the resolved tuning parameters.
	cfg Config
}

// New builds an Engine. store may be nil when the corpus is unavailable.
func New(store *corpus.Store, caps Capabilities, cfg Config) *Engine {
	return &Engine{
		store:   store,
		caps:    caps,
		lexical: lexical.New(store),
		cfg:     cfg.withDefaults(),
	}
}

// Capabilities returns the capability set the engine was built with.
func (e *Engine) Capabilities() Capabilities { return e.caps }

// StoreSize returns the number of records searched, 0 when unavailable.
func (e *Engine) StoreSize() int { return e.store.Len() }

// FindSimilar returns up to topK records similar to query (cfg.TopK when
// topK <= 0). The result is degraded when a configured vector index failed
// or found nothing, or when the sample fallback was used.
func (e *Engine) FindSimilar(ctx context.Context, query string, topK int) stage.Result[Result] {
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	topK = min(topK, MaxTopK)
	log := logging.FromContext(ctx)

	var vecErr error
	if e.caps.HasVector() {
		matches, err := e.vectorSearch(ctx, query, topK)
		if err == nil && len(matches) > 0 {
			return stage.OK(Result{Matches: matches, Strategy: StrategyVector})
		}
		if err == nil {
			err = errNoVectorHits
		}
		vecErr = err
		log.Warn("retrieval: vector search failed, falling back to lexical", slog.Any("error", err))
	}

	if matches := e.lexical.Search(query, topK, e.cfg.ScanLimit); len(matches) > 0 {
		res := Result{Matches: matches, Strategy: StrategyLexical}
		if vecErr != nil {
			return stage.Degraded(res, vecErr)
		}
		return stage.OK(res)
	}

	log.Info("retrieval: no matches, returning sample records",
		slog.Bool("store_available", e.store != nil),
	)
	return stage.Degraded(Result{Matches: e.sample(), Strategy: StrategySample}, vecErr)
}

// vectorSearch runs the index and maps distances to similarities. Neighbours
// pointing outside the store are skipped individually.
func (e *Engine) vectorSearch(ctx context.Context, query string, topK int) ([]corpus.Match, error) {
	neighbors, err := e.caps.Vector.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector search: %w", err)
	}

	log := logging.FromContext(ctx)
	matches := make([]corpus.Match, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Index < 0 {
			continue
		}
		if d := float64(n.Distance); math.IsNaN(d) || math.IsInf(d, 0) {
			log.Warn("retrieval: skipping candidate with non-finite distance", slog.Int("index", n.Index))
			continue
		}
		rec, err := e.store.Get(n.Index)
		if err != nil {
			log.Warn("retrieval: skipping candidate", slog.Int("index", n.Index), slog.Any("error", err))
			continue
		}
		score := vectorindex.Similarity(n.Distance, e.cfg.DistanceScale)
		matches = append(matches, corpus.Match{Record: rec, Score: corpus.RoundScore(score, 3)})
	}
	return corpus.Rerank(matches), nil
}

// sample returns the first records of the store with descending synthetic
// scores, or the built-in placeholders when the store is empty or missing.
func (e *Engine) sample() []corpus.Match {
	n := min(e.cfg.SampleSize, e.store.Len())
	if n == 0 {
		return placeholders()
	}
	out := make([]corpus.Match, 0, n)
	for i, rec := range e.store.All() {
		if i >= n {
			break
		}
		score := 0.8 - 0.2*float64(i)
		out = append(out, corpus.Match{Record: rec, Score: corpus.RoundScore(score, 2)})
	}
	return corpus.Rerank(out)
}

// Placeholders returns the sample result served when no corpus is available.
func Placeholders() Result {
	return Result{Matches: placeholders(), Strategy: StrategySample}
}

// placeholders is the fixed pair returned when no corpus is available.
func placeholders() []corpus.Match {
	return corpus.Rerank([]corpus.Match{
		{
			Record: corpus.Record{
				ID:              "SAMPLE_001",
				Title:           "Smartphone battery optimization",
				Category:        "Electronics",
				Assignee:        "Technology Company",
				PublicationDate: "2023-05-15",
				FilingDate:      "2022-11-20",
			},
			Score: 0.75,
		},
		{
			Record: corpus.Record{
				ID:              "SAMPLE_002",
				Title:           "Mobile device power management system",
				Category:        "Software",
				Assignee:        "Innovation Inc.",
				PublicationDate: "2023-03-10",
				FilingDate:      "2022-09-05",
			},
			Score: 0.65,
		},
	})
}
