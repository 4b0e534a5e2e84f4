// Package flat provides the exact brute-force nearest-neighbor backend.
package flat

import (
	"context"
	"slices"
	"sync"

	"github.com/scgo/mnncorrect/internal/queue"
	"github.com/scgo/mnncorrect/knn"
)

// Compile-time check that Flat satisfies the backend contract.
var _ knn.Index = (*Flat)(nil)

// Flat is an exact nearest-neighbor index: every query scans all stored
// vectors and keeps the k nearest in a bounded heap. Distance ties are
// broken by ascending id, so results are fully deterministic.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float64
}

// New creates an empty flat index for dim-dimensional vectors.
func New(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, &knn.ErrInvalidDimension{Dimension: dim}
	}
	return &Flat{dim: dim}, nil
}

// Insert adds a vector copy and returns its sequential id.
func (f *Flat) Insert(ctx context.Context, v []float64) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, knn.ErrEmptyVector
	}
	if len(v) != f.dim {
		return 0, &knn.ErrDimensionMismatch{Expected: f.dim, Actual: len(v)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := uint32(len(f.vectors))
	f.vectors = append(f.vectors, slices.Clone(v))
	return id, nil
}

// KNNSearch returns the k nearest stored vectors to q, ascending by
// (distance, id). When fewer than k vectors are stored, all are returned.
func (f *Flat) KNNSearch(ctx context.Context, q []float64, k int) ([]knn.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, knn.ErrInvalidK
	}
	if len(q) != f.dim {
		return nil, &knn.ErrDimensionMismatch{Expected: f.dim, Actual: len(q)}
	}

	f.mu.RLock()
	vectors := f.vectors
	f.mu.RUnlock()

	if len(vectors) == 0 {
		return nil, nil
	}

	limit := min(k, len(vectors))
	top := queue.NewMax(limit)
	for id, v := range vectors {
		top.PushBounded(queue.Item{ID: uint32(id), Distance: knn.SquaredL2(q, v)}, limit)
	}

	items := top.Drain()
	results := make([]knn.SearchResult, len(items))
	for i, item := range items {
		results[i] = knn.SearchResult{ID: item.ID, Distance: item.Distance}
	}
	return results, nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimension returns the configured dimensionality.
func (f *Flat) Dimension() int { return f.dim }
