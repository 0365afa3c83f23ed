package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/54b3r/priorart-go/internal/embedder"
	"github.com/54b3r/priorart-go/internal/logging"
)

// BuildOptions tunes batch embedding during index construction.
type BuildOptions struct {
	// BatchSize is the number of titles per embedding call. Defaults to 64.
	BatchSize int
	// Workers is the number of concurrent embedding calls. Defaults to
	// half the CPUs, minimum 1.
	Workers int
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = max(runtime.NumCPU()/2, 1)
	}
	return o
}

// EmbedAll embeds texts in batches on a bounded worker pool and returns the
// vectors in input order. The first failing batch cancels the rest.
func EmbedAll(ctx context.Context, emb embedder.Embedder, texts []string, opts BuildOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmpty
	}
	opts = opts.withDefaults()
	log := logging.FromContext(ctx)

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vecs, err := emb.Embed(ctx, texts[start:end])
			if err != nil {
				fail(fmt.Errorf("vectorindex: embed rows %d-%d: %w", start, end-1, err))
				return
			}
			if len(vecs) != end-start {
				fail(fmt.Errorf("vectorindex: embed rows %d-%d: got %d vectors", start, end-1, len(vecs)))
				return
			}
			copy(out[start:end], vecs)

			mu.Lock()
			done += end - start
			n := done
			mu.Unlock()
			log.Debug("vectorindex: batch embedded", slog.Int("done", n), slog.Int("total", len(texts)))
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("vectorindex: submit batch: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// BuildFlat embeds titles and returns an exact index over them.
func BuildFlat(ctx context.Context, emb embedder.Embedder, titles []string, opts BuildOptions) (*Flat, error) {
	vecs, err := EmbedAll(ctx, emb, titles, opts)
	if err != nil {
		return nil, err
	}
	return NewFlat(emb, vecs)
}
