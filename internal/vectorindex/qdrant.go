package vectorindex

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/priorart-go/internal/embedder"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string
	// Port is the Qdrant gRPC port (default: 6334).
	Port int
	// Collection is the collection holding record-title vectors.
	Collection string
	// VectorSize is the embedding dimension of the collection.
	VectorSize uint64
	// APIKey is the optional Qdrant API key.
	APIKey string
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant is an Index backed by a Qdrant collection using Euclid distance.
// Point IDs are record-store positions.
type Qdrant struct {
	// client is the Qdrant gRPC client.
	client *qdrant.Client
	// cfg holds the resolved configuration.
	cfg *QdrantConfig
	// embed turns query text into a vector.
	embed embedder.Embedder
}

// NewQdrant connects to Qdrant and ensures the collection exists.
func NewQdrant(ctx context.Context, cfg *QdrantConfig, emb embedder.Embedder) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	q := &Qdrant{client: client, cfg: cfg, embed: emb}
	if err := q.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

// Client exposes the underlying client for health probes.
func (q *Qdrant) Client() *qdrant.Client { return q.client }

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil //nolint:gosec // collection sizes fit in int
}

// Upsert writes vectors as points whose IDs are their positions, with the
// matching title stored in the payload for inspection.
func (q *Qdrant) Upsert(ctx context.Context, titles []string, vectors [][]float32) error {
	if len(titles) != len(vectors) {
		return fmt.Errorf("qdrant: %d titles for %d vectors", len(titles), len(vectors))
	}
	const batch = 256
	for start := 0; start < len(vectors); start += batch {
		end := min(start+batch, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)), //nolint:gosec // i is non-negative
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"row":   int64(i),
					"title": titles[i],
				}),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.cfg.Collection,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("qdrant: upsert rows %d-%d failed: %w", start, end-1, err)
		}
	}
	return nil
}

// Search embeds query and returns the topK nearest points. Qdrant reports
// Euclid distance; it is squared here so callers see the same metric as Flat.
func (q *Qdrant) Search(ctx context.Context, query string, topK int) ([]Neighbor, error) {
	if topK <= 0 {
		return nil, nil
	}
	vecs, err := q.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("qdrant: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("qdrant: embed query: got %d vectors", len(vecs))
	}
	if uint64(len(vecs[0])) != q.cfg.VectorSize {
		return nil, fmt.Errorf("%w: query has %d dims, collection has %d", ErrDimensionMismatch, len(vecs[0]), q.cfg.VectorSize)
	}

	limit := uint64(topK) //nolint:gosec // topK is positive
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vecs[0]...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]Neighbor, 0, len(results))
	for _, r := range results {
		d := r.GetScore()
		out = append(out, Neighbor{
			Index:    int(r.GetId().GetNum()), //nolint:gosec // IDs are row positions
			Distance: d * d,
		})
	}
	return out, nil
}

// Close closes the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
