package mnncorrect

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// MergeStep records the diagnostics of folding one batch into the
// reference pool.
type MergeStep struct {
	// Batch is the name of the folded-in batch.
	Batch string

	// Anchors is the number of mutual neighbor pairs used.
	Anchors int

	// Fallbacks counts query cells corrected via the single-nearest-
	// anchor fallback. A degraded-quality path, not a failure.
	Fallbacks uint64

	// FallbackCells holds those cells' indexes in the concatenated
	// output order.
	FallbackCells *roaring.Bitmap

	// PoolSize is the reference pool size after the append.
	PoolSize int

	// Duration is the wall-clock time of the step.
	Duration time.Duration
}

// MergeReport summarizes one integration run for diagnostics.
type MergeReport struct {
	// Order is the merge order the run used.
	Order []string

	// Steps holds one entry per folded-in batch, in merge order. A
	// single-batch run has no steps.
	Steps []MergeStep

	// CellsPerBatch maps batch name to the number of cells retained.
	CellsPerBatch map[string]int

	// SignFlips lists embedding components flipped by the sign-fixing
	// convention.
	SignFlips []int
}

// TotalFallbacks sums fallback cells across all merge steps.
func (r *MergeReport) TotalFallbacks() uint64 {
	var total uint64
	for _, s := range r.Steps {
		total += s.Fallbacks
	}
	return total
}

// TotalAnchors sums anchor pairs across all merge steps.
func (r *MergeReport) TotalAnchors() int {
	var total int
	for _, s := range r.Steps {
		total += s.Anchors
	}
	return total
}
