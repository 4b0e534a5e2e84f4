// Package correct turns anchor pairs into smoothed per-cell correction
// vectors.
//
// Each anchor contributes a raw vector, reference expression minus query
// expression. Every query cell, anchor or not, receives the
// Gaussian-weighted average of the raw vectors of its m nearest anchors
// (anchors ranked by the distance from the query cell to the anchor's
// query-side cell). Corrections are additive and never change gene
// identity or dimensionality.
package correct

import (
	"context"
	"errors"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/scgo/mnncorrect/internal/queue"
	"github.com/scgo/mnncorrect/knn"
	"github.com/scgo/mnncorrect/mnn"
)

var (
	// ErrNoAnchors is returned when called without any anchor pair.
	ErrNoAnchors = errors.New("correct: no anchor pairs")

	// ErrInvalidBandwidth is returned for a non-positive or non-finite
	// kernel bandwidth.
	ErrInvalidBandwidth = errors.New("correct: bandwidth must be positive and finite")
)

// Options configures correction smoothing.
type Options struct {
	// Anchors is m, the number of nearest anchors averaged per query
	// cell. Values above the anchor count use every anchor.
	Anchors int

	// Parallelism bounds concurrent per-cell smoothing. Defaults to
	// GOMAXPROCS; output is independent of the setting.
	Parallelism int
}

// DefaultOptions are the default smoothing options.
var DefaultOptions = Options{
	Anchors: 20,
}

// Result holds one correction vector per query cell plus the ids of
// cells that fell back to an unweighted single-anchor correction.
type Result struct {
	// Vectors[i] is the smoothed correction for query cell i.
	Vectors [][]float64

	// Fallbacks lists query cells whose kernel weights all underflowed,
	// corrected with the nearest anchor's raw vector instead. A degraded
	// path, not an error.
	Fallbacks []uint32
}

// Compute derives smoothed correction vectors for every query cell.
// ref and query must share one gene axis; bandwidth is the Gaussian
// kernel width applied to expression-space distances.
func Compute(ctx context.Context, pairs []mnn.AnchorPair, ref, query [][]float64, bandwidth float64, optFns ...func(o *Options)) (*Result, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Anchors < 1 {
		opts.Anchors = DefaultOptions.Anchors
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	if len(pairs) == 0 {
		return nil, ErrNoAnchors
	}
	if bandwidth <= 0 || math.IsInf(bandwidth, 0) || math.IsNaN(bandwidth) {
		return nil, ErrInvalidBandwidth
	}

	dim := len(query[0])

	// Raw vectors and anchor positions, one per pair.
	raw := make([][]float64, len(pairs))
	anchorPos := make([][]float64, len(pairs))
	for i, p := range pairs {
		v := make([]float64, dim)
		floats.SubTo(v, ref[p.Ref], query[p.Query])
		raw[i] = v
		anchorPos[i] = query[p.Query]
	}

	m := min(opts.Anchors, len(pairs))
	invTwoSigmaSq := 1 / (2 * bandwidth * bandwidth)

	vectors := make([][]float64, len(query))
	fallback := make([]bool, len(query))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for c, cell := range query {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			// Rank anchors by distance to this query cell; ties break on
			// the stable pair index.
			top := queue.NewMax(m)
			for a, pos := range anchorPos {
				top.PushBounded(queue.Item{ID: uint32(a), Distance: knn.SquaredL2(cell, pos)}, m)
			}
			nearest := top.Drain()

			smoothed := make([]float64, dim)
			var total float64
			for _, item := range nearest {
				w := math.Exp(-item.Distance * invTwoSigmaSq)
				if w == 0 {
					continue
				}
				floats.AddScaled(smoothed, w, raw[item.ID])
				total += w
			}

			if total == 0 {
				// All kernel weights underflowed: fall back to the single
				// nearest anchor's raw vector, unweighted.
				copy(smoothed, raw[nearest[0].ID])
				fallback[c] = true
			} else {
				floats.Scale(1/total, smoothed)
			}

			vectors[c] = smoothed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Vectors: vectors}
	for c, fb := range fallback {
		if fb {
			res.Fallbacks = append(res.Fallbacks, uint32(c))
		}
	}
	return res, nil
}

// Apply returns expr + correction as new slices, leaving inputs intact.
func Apply(expr, corrections [][]float64) [][]float64 {
	out := make([][]float64, len(expr))
	for i, v := range expr {
		c := make([]float64, len(v))
		floats.AddTo(c, v, corrections[i])
		out[i] = c
	}
	return out
}
