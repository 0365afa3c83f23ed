//go:build integration

package vectorindex

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// TestQdrant_Integration upserts a handful of vectors into a throwaway
// collection and checks that search returns squared distances.
//
// Run with:
//
//	docker run -p 6334:6334 qdrant/qdrant
//	go test -tags=integration -run TestQdrant_Integration ./internal/vectorindex/
func TestQdrant_Integration(t *testing.T) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		host = "localhost"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	emb := lookupEmbedder(map[string][]float32{"query": {1, 0}})
	q, err := NewQdrant(ctx, &QdrantConfig{
		Host:       host,
		Collection: fmt.Sprintf("priorart-it-%d", time.Now().UnixNano()),
		VectorSize: 2,
	}, emb)
	if err != nil {
		t.Fatalf("NewQdrant: %v", err)
	}
	t.Cleanup(func() {
		_ = q.client.DeleteCollection(context.Background(), q.cfg.Collection)
		_ = q.Close()
	})

	titles := []string{"far", "exact", "near"}
	vecs := [][]float32{{0, 1}, {1, 0}, {0.5, 0}}
	if err := q.Upsert(ctx, titles, vecs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, err := q.Count(ctx); err != nil || n != 3 {
		t.Fatalf("Count: %d, %v", n, err)
	}

	got, err := q.Search(ctx, "query", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 || got[0].Index != 1 || got[1].Index != 2 {
		t.Fatalf("unexpected order: %+v", got)
	}
	if d := got[1].Distance; d < 0.24 || d > 0.26 {
		t.Errorf("want squared distance ~0.25, got %v", d)
	}
}
