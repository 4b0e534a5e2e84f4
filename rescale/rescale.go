// Package rescale removes systematic between-batch depth offsets before
// correction.
//
// Per-cell size factors computed independently per batch remove
// within-batch technical variance but are typically centered per batch,
// which leaves a constant depth offset between batches. That offset
// biases cross-batch neighbor distances, so each batch's size factors
// are multiplied by a single batch-level factor relative to a reference
// batch before log-normalized expression is recomputed.
package rescale

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/scgo/mnncorrect/matrix"
)

// ErrNoCells indicates a batch with zero cells remaining after upstream
// filtering.
type ErrNoCells struct {
	Batch string
}

func (e *ErrNoCells) Error() string {
	return fmt.Sprintf("rescale: batch %q has no cells", e.Batch)
}

// ErrMissingCounts indicates a batch without raw counts or size factors.
type ErrMissingCounts struct {
	Batch string
}

func (e *ErrMissingCounts) Error() string {
	return fmt.Sprintf("rescale: batch %q has no counts/size factors", e.Batch)
}

// ErrInvalidSizeFactor indicates a non-positive or non-finite size factor.
type ErrInvalidSizeFactor struct {
	Batch string
	Cell  int
	Value float64
}

func (e *ErrInvalidSizeFactor) Error() string {
	return fmt.Sprintf("rescale: batch %q cell %d has invalid size factor %v", e.Batch, e.Cell, e.Value)
}

// Options configures the rescaler.
type Options struct {
	// PseudoCount is added before the log transform: log2(PseudoCount + x).
	PseudoCount float64
}

// DefaultOptions are the default rescaler options.
var DefaultOptions = Options{
	PseudoCount: 1,
}

// Batches returns copies of the input batches with rescaled size factors
// and freshly computed log-normalized expression. The reference batch is
// the one whose mean per-cell depth is the median across batches; its
// size factors are kept as-is and every other batch's factors are scaled
// by depth(batch)/depth(reference).
func Batches(batches []*matrix.Batch, optFns ...func(o *Options)) ([]*matrix.Batch, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	depths := make([]float64, len(batches))
	for i, b := range batches {
		if b.NumCells() == 0 {
			return nil, &ErrNoCells{Batch: b.Name}
		}
		if b.Counts == nil || b.SizeFactors == nil {
			return nil, &ErrMissingCounts{Batch: b.Name}
		}
		for c, sf := range b.SizeFactors {
			if sf <= 0 || math.IsInf(sf, 0) || math.IsNaN(sf) {
				return nil, &ErrInvalidSizeFactor{Batch: b.Name, Cell: c, Value: sf}
			}
		}
		depths[i] = meanDepth(b)
	}

	ref := referenceBatch(depths)

	out := make([]*matrix.Batch, len(batches))
	for i, b := range batches {
		factor := depths[i] / depths[ref]
		out[i] = rescaleBatch(b, factor, opts.PseudoCount)
	}
	return out, nil
}

// meanDepth returns the mean total count per cell.
func meanDepth(b *matrix.Batch) float64 {
	var total float64
	for _, cell := range b.Counts {
		for _, v := range cell {
			total += v
		}
	}
	return total / float64(b.NumCells())
}

// referenceBatch picks the batch whose depth equals the median of all
// batch depths. Ties and even counts resolve to the lower median so the
// choice is deterministic.
func referenceBatch(depths []float64) int {
	sorted := append([]float64(nil), depths...)
	sort.Float64s(sorted)
	target := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	for i, d := range depths {
		if d == target {
			return i
		}
	}
	// Unreachable: Empirical quantiles are drawn from the sample.
	return 0
}

func rescaleBatch(b *matrix.Batch, factor, pseudo float64) *matrix.Batch {
	out := b.Clone()
	for c := range out.SizeFactors {
		out.SizeFactors[c] *= factor
	}
	out.Expr = make([][]float64, out.NumCells())
	for c, counts := range out.Counts {
		v := make([]float64, len(counts))
		sf := out.SizeFactors[c]
		for g, raw := range counts {
			v[g] = math.Log2(pseudo + raw/sf)
		}
		out.Expr[c] = v
	}
	return out
}
