package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/54b3r/priorart-go/internal/embedder"
)

// Flat is an exact brute-force index over squared Euclidean distance. It is
// immutable after construction.
type Flat struct {
	// vectors holds one embedding per record, in store order.
	vectors [][]float32
	// dim is the shared vector length.
	dim int
	// embed turns query text into a vector in the same space.
	embed embedder.Embedder
}

// NewFlat builds an index over vectors, which must all share one length.
// The slice is retained, not copied.
func NewFlat(emb embedder.Embedder, vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector at 0", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return &Flat{vectors: vectors, dim: dim, embed: emb}, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the vector length.
func (f *Flat) Dim() int { return f.dim }

// Search embeds query and returns the topK nearest vectors.
func (f *Flat) Search(ctx context.Context, query string, topK int) ([]Neighbor, error) {
	vecs, err := f.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("vectorindex: embed query: got %d vectors", len(vecs))
	}
	return f.SearchVector(vecs[0], topK)
}

// SearchVector returns the topK nearest vectors to q, nearest first. Equal
// distances are ordered by lower index.
func (f *Flat) SearchVector(q []float32, topK int) ([]Neighbor, error) {
	if len(q) != f.dim {
		return nil, fmt.Errorf("%w: query has %d dims, index has %d", ErrDimensionMismatch, len(q), f.dim)
	}
	if topK <= 0 {
		return nil, nil
	}

	all := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		all[i] = Neighbor{Index: i, Distance: squaredL2(q, v)}
	}
	slices.SortStableFunc(all, func(a, b Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return all[:min(topK, len(all))], nil
}

// squaredL2 returns the squared Euclidean distance between equal-length vectors.
func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
