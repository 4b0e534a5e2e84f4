// Package mnn extracts mutual nearest-neighbor anchor pairs between a
// reference cell set and a query cell set.
//
// A pair (r, q) is an anchor iff q is among r's k nearest query-side
// neighbors AND r is among q's k nearest reference-side neighbors, both
// judged by the configured backend's own neighbor lists. Anchors exist
// only for the duration of one merge step.
package mnn

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/scgo/mnncorrect/knn"
)

// AnchorPair is an unordered correspondence between one reference cell
// and one query cell, identified by their positions in the input sets.
type AnchorPair struct {
	Ref   uint32
	Query uint32
}

// ErrInvalidNeighborCount indicates k outside [1, min(|ref|, |query|)].
type ErrInvalidNeighborCount struct {
	K     int
	Limit int
}

func (e *ErrInvalidNeighborCount) Error() string {
	return fmt.Sprintf("mnn: k=%d outside valid range [1, %d]", e.K, e.Limit)
}

// Options configures the matcher.
type Options struct {
	// Parallelism bounds concurrent neighbor queries. Queries are
	// read-only over finished indexes and results are written to
	// pre-allocated slots, so the output is identical to serial
	// execution. Defaults to GOMAXPROCS.
	Parallelism int
}

// DefaultOptions are the default matcher options.
var DefaultOptions = Options{
	Parallelism: 0,
}

// FindMutualNeighbors performs bidirectional k-nearest-neighbor search
// between ref and query and returns the mutual pairs, ordered by
// (query, ref). An empty result is not an error here; the caller decides
// whether a step can proceed without anchors.
func FindMutualNeighbors(ctx context.Context, ref, query [][]float64, k int, build knn.Builder, optFns ...func(o *Options)) ([]AnchorPair, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	limit := min(len(ref), len(query))
	if k < 1 || k > limit {
		return nil, &ErrInvalidNeighborCount{K: k, Limit: limit}
	}

	dim := len(ref[0])

	// Reference-side lists: for each query cell, its k nearest reference
	// cells.
	refNeighbors, err := neighborLists(ctx, ref, query, k, dim, build, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	// Query-side lists: for each reference cell, its k nearest query
	// cells.
	queryNeighbors, err := neighborLists(ctx, query, ref, k, dim, build, opts.Parallelism)
	if err != nil {
		return nil, err
	}

	// Membership sets over the query-side lists, so mutuality checks are
	// O(1) per candidate.
	members := make([]map[uint32]struct{}, len(ref))
	for r, list := range queryNeighbors {
		set := make(map[uint32]struct{}, len(list))
		for _, q := range list {
			set[q] = struct{}{}
		}
		members[r] = set
	}

	// Deterministic extraction order: query cells ascending, then each
	// query cell's reference list in backend-returned (nearest-first)
	// order.
	var pairs []AnchorPair
	for q, list := range refNeighbors {
		for _, r := range list {
			if _, mutual := members[r][uint32(q)]; mutual {
				pairs = append(pairs, AnchorPair{Ref: r, Query: uint32(q)})
			}
		}
	}
	return pairs, nil
}

// neighborLists indexes the target set and returns, for each probe
// vector, the ids of its k nearest targets.
func neighborLists(ctx context.Context, targets, probes [][]float64, k, dim int, build knn.Builder, parallelism int) ([][]uint32, error) {
	idx, err := build(dim)
	if err != nil {
		return nil, err
	}
	if err := knn.BulkLoad(ctx, idx, targets); err != nil {
		return nil, err
	}

	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	lists := make([][]uint32, len(probes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, probe := range probes {
		g.Go(func() error {
			results, err := idx.KNNSearch(gctx, probe, k)
			if err != nil {
				return err
			}
			ids := make([]uint32, len(results))
			for j, res := range results {
				ids[j] = res.ID
			}
			lists[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}
