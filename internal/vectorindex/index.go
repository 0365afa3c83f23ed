// Package vectorindex provides nearest-neighbour search over embedded record
// titles. Two backends are available: Flat, an exact in-memory squared-L2
// index that can be persisted to a file, and Qdrant, backed by a Qdrant
// collection. Both report squared Euclidean distances keyed by record-store
// position, best match first.
package vectorindex

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a query vector's length differs
	// from the indexed vectors.
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")
	// ErrEmpty is returned when building an index from no vectors.
	ErrEmpty = errors.New("vectorindex: no vectors to index")
	// ErrLoad wraps failures reading a persisted index.
	ErrLoad = errors.New("vectorindex: load failed")
)

// Neighbor is one search hit.
type Neighbor struct {
	// Index is the record-store position of the hit.
	Index int
	// Distance is the squared Euclidean distance; 0 means identical vectors.
	Distance float32
}

// Index is a read-only nearest-neighbour index over record titles.
// Implementations must be safe for concurrent use.
type Index interface {
	// Search embeds query and returns up to topK neighbours, nearest first.
	Search(ctx context.Context, query string, topK int) ([]Neighbor, error)
}

// Similarity maps a squared distance to a bounded similarity:
// max(0, 1 - distance/scale). scale must be positive; unit-length embeddings
// have squared distances in [0, 4], so the usual scale is 2.
func Similarity(distance float32, scale float64) float64 {
	if scale <= 0 {
		scale = DefaultDistanceScale
	}
	return max(0, 1-float64(distance)/scale)
}

// DefaultDistanceScale is the divisor used by Similarity when none is configured.
const DefaultDistanceScale = 2.0
