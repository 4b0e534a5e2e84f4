// Package knn defines the contract a nearest-neighbor backend must
// satisfy to drive mutual-neighbor matching.
//
// Two interchangeable implementations ship with this module: knn/flat
// (exact brute force) and knn/hnsw (approximate graph search). Backends
// are selected by configuration; mutuality of anchor pairs is always
// evaluated against the neighbor lists the configured backend returns,
// so an approximate backend yields "mutual according to that backend",
// not absolute mutuality.
package knn

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("knn: k must be positive")

	// ErrEmptyVector is returned when inserting a zero-length vector.
	ErrEmptyVector = errors.New("knn: empty vector")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("knn: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("knn: invalid dimension: %d", e.Dimension)
}

// SearchResult is one neighbor: the id assigned at insert time and the
// squared Euclidean distance to the query.
type SearchResult struct {
	ID       uint32
	Distance float64
}

// Index is a nearest-neighbor index over float64 vectors.
//
// Inserted vectors receive sequential ids starting at zero, matching the
// insertion order. Search returns up to k results ordered by ascending
// distance; exact backends break distance ties by ascending id.
type Index interface {
	// Insert adds a vector and returns its id.
	Insert(ctx context.Context, v []float64) (uint32, error)

	// KNNSearch returns the k nearest inserted vectors to q.
	KNNSearch(ctx context.Context, q []float64, k int) ([]SearchResult, error)

	// Len returns the number of inserted vectors.
	Len() int

	// Dimension returns the configured vector dimensionality.
	Dimension() int
}

// Builder creates an empty index for the given dimensionality. It is how
// the matcher stays agnostic of the configured backend.
type Builder func(dim int) (Index, error)

// Backend selects a nearest-neighbor implementation.
type Backend int

const (
	// BackendExact is brute-force search with true mutuality.
	BackendExact Backend = iota

	// BackendApproximate is HNSW graph search, trading recall for speed.
	BackendApproximate
)

func (b Backend) String() string {
	switch b {
	case BackendExact:
		return "exact"
	case BackendApproximate:
		return "approximate"
	default:
		return fmt.Sprintf("unknown(%d)", int(b))
	}
}

// BulkLoad inserts vectors in order, so ids equal slice positions.
func BulkLoad(ctx context.Context, idx Index, vectors [][]float64) error {
	for _, v := range vectors {
		if _, err := idx.Insert(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// SquaredL2 computes the squared Euclidean distance between two vectors.
// Assumes equal lengths (caller's responsibility).
func SquaredL2(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
