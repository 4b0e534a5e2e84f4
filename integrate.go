package mnncorrect

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/scgo/mnncorrect/correct"
	"github.com/scgo/mnncorrect/genes"
	"github.com/scgo/mnncorrect/knn"
	"github.com/scgo/mnncorrect/knn/flat"
	"github.com/scgo/mnncorrect/knn/hnsw"
	"github.com/scgo/mnncorrect/matrix"
	"github.com/scgo/mnncorrect/mnn"
	"github.com/scgo/mnncorrect/pca"
	"github.com/scgo/mnncorrect/rescale"
)

// Integrator merges batches into one corrected expression space and
// reduces it to a fixed number of output dimensions.
//
// The merge is a sequential state machine: the reference pool starts as
// the first batch of the configured merge order, and every subsequent
// batch is matched against the pool, corrected, and appended. The pool
// is an immutable value replaced after each step; neighbor searches
// within a step read a stable snapshot, and a cancelled step is
// discarded without side effects.
type Integrator struct {
	k    int
	d    int
	opts Options
}

// Result is the output of one integration run.
type Result struct {
	// Embedding holds one d-dimensional vector per cell, in the input
	// order of the concatenated corrected matrix.
	Embedding [][]float64

	// Corrected is the merged corrected expression matrix (cells x
	// shared genes), same row order as Embedding.
	Corrected [][]float64

	// Genes is the shared gene universe, in the order used by Corrected.
	Genes []string

	// CellIDs are the per-cell identifiers, in output row order.
	CellIDs []string

	// BatchOf records each cell's batch of origin, in output row order.
	BatchOf []string

	// Report holds per-step diagnostics.
	Report *MergeReport
}

// New creates an Integrator. k is the number of neighbors per search
// direction; d is the output embedding dimensionality.
func New(k, d int, optFns ...func(o *Options)) (*Integrator, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if k < 1 {
		return nil, configErr(&ErrParameter{Name: "k", Value: k})
	}
	if d < 1 {
		return nil, configErr(&ErrParameter{Name: "d", Value: d})
	}
	if opts.Bandwidth <= 0 || math.IsInf(opts.Bandwidth, 0) || math.IsNaN(opts.Bandwidth) {
		return nil, configErr(&ErrParameter{Name: "bandwidth", Value: opts.Bandwidth})
	}
	if opts.SmoothingAnchors < 1 {
		return nil, configErr(&ErrParameter{Name: "smoothing anchors", Value: opts.SmoothingAnchors})
	}
	switch opts.Backend {
	case knn.BackendExact, knn.BackendApproximate:
	default:
		return nil, configErr(&ErrParameter{Name: "backend", Value: opts.Backend})
	}
	if opts.Logger == nil {
		opts.Logger = NoopLogger()
	}

	return &Integrator{k: k, d: d, opts: opts}, nil
}

// Integrate runs the full pipeline: gene alignment, depth rescaling,
// sequential mutual-neighbor correction, and dimensionality reduction.
// On any error no partial result is returned.
func (in *Integrator) Integrate(ctx context.Context, batches []*matrix.Batch) (*Result, error) {
	if len(batches) == 0 {
		return nil, configErr(ErrNoBatches)
	}

	aligned, universe, err := genes.AlignAll(batches)
	if err != nil {
		return nil, configErr(err)
	}

	if in.opts.Rescale {
		aligned, err = rescale.Batches(aligned)
		if err != nil {
			return nil, validationErr(err)
		}
	} else {
		for _, b := range aligned {
			if b.NumCells() == 0 {
				return nil, validationErr(&rescale.ErrNoCells{Batch: b.Name})
			}
			if b.Expr == nil {
				return nil, validationErr(&ErrMissingExpression{Batch: b.Name})
			}
		}
	}

	ordered, err := in.resolveOrder(aligned)
	if err != nil {
		return nil, err
	}

	build := in.builder()

	report := &MergeReport{
		Order:         append([]string(nil), in.opts.MergeOrder...),
		CellsPerBatch: make(map[string]int, len(ordered)),
	}

	first := ordered[0]
	pool := append([][]float64(nil), first.Expr...)
	cellIDs := append([]string(nil), first.Cells...)
	batchOf := make([]string, 0, len(pool))
	for range first.Cells {
		batchOf = append(batchOf, first.Name)
	}
	report.CellsPerBatch[first.Name] = first.NumCells()

	for step, b := range ordered[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()

		anchors, err := mnn.FindMutualNeighbors(ctx, pool, b.Expr, in.k, build, func(o *mnn.Options) {
			o.Parallelism = in.opts.Parallelism
		})
		if err != nil {
			var nc *mnn.ErrInvalidNeighborCount
			if errors.As(err, &nc) {
				return nil, validationErr(err)
			}
			return nil, err
		}
		if len(anchors) == 0 {
			return nil, integrationErr(&ErrNoAnchors{Step: step + 1, Batch: b.Name})
		}
		in.opts.Logger.WithBatch(b.Name).DebugContext(ctx, "anchors matched",
			"step", step+1,
			"count", len(anchors),
		)

		corr, err := correct.Compute(ctx, anchors, pool, b.Expr, in.opts.Bandwidth, func(o *correct.Options) {
			o.Anchors = in.opts.SmoothingAnchors
			o.Parallelism = in.opts.Parallelism
		})
		if err != nil {
			return nil, err
		}

		corrected := correct.Apply(b.Expr, corr.Vectors)
		for c, row := range corrected {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, numericalErr(&ErrNonFinite{Batch: b.Name, Cell: c})
				}
			}
		}

		offset := uint32(len(pool))
		fallbackCells := roaring.New()
		for _, id := range corr.Fallbacks {
			fallbackCells.Add(offset + id)
		}

		// The pool is replaced, never mutated: a fresh slice reuses the
		// unchanged older rows and appends the corrected batch.
		next := make([][]float64, 0, len(pool)+len(corrected))
		next = append(next, pool...)
		next = append(next, corrected...)
		pool = next

		cellIDs = append(cellIDs, b.Cells...)
		for range b.Cells {
			batchOf = append(batchOf, b.Name)
		}
		report.CellsPerBatch[b.Name] = b.NumCells()

		ms := MergeStep{
			Batch:         b.Name,
			Anchors:       len(anchors),
			Fallbacks:     fallbackCells.GetCardinality(),
			FallbackCells: fallbackCells,
			PoolSize:      len(pool),
			Duration:      time.Since(started),
		}
		report.Steps = append(report.Steps, ms)
		in.opts.Logger.LogMergeStep(ctx, ms)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding, err := pca.Reduce(pool, in.d, func(o *pca.Options) {
		o.FixSigns = in.opts.FixSigns
	})
	if err != nil {
		return nil, numericalErr(err)
	}
	report.SignFlips = embedding.SignFlips

	return &Result{
		Embedding: embedding.Scores,
		Corrected: pool,
		Genes:     universe,
		CellIDs:   cellIDs,
		BatchOf:   batchOf,
		Report:    report,
	}, nil
}

// resolveOrder arranges the aligned batches into the configured merge
// order. The order is required and must name every batch exactly once.
func (in *Integrator) resolveOrder(batches []*matrix.Batch) ([]*matrix.Batch, error) {
	byName := make(map[string]*matrix.Batch, len(batches))
	for _, b := range batches {
		if _, dup := byName[b.Name]; dup {
			return nil, configErr(&ErrDuplicateBatch{Name: b.Name})
		}
		byName[b.Name] = b
	}

	order := in.opts.MergeOrder
	if len(order) == 0 {
		return nil, configErr(&ErrMergeOrder{Reason: "merge order is required"})
	}
	if len(order) != len(batches) {
		return nil, configErr(&ErrMergeOrder{Reason: "merge order must name every batch exactly once"})
	}

	ordered := make([]*matrix.Batch, len(order))
	for i, name := range order {
		b, ok := byName[name]
		if !ok {
			return nil, configErr(&ErrMergeOrder{Reason: "unknown batch " + name})
		}
		if b == nil {
			return nil, configErr(&ErrMergeOrder{Reason: "batch " + name + " listed twice"})
		}
		byName[name] = nil
		ordered[i] = b
	}
	return ordered, nil
}

// builder returns the backend constructor for the configured backend.
func (in *Integrator) builder() knn.Builder {
	if in.opts.Backend == knn.BackendApproximate {
		seed := in.opts.Seed
		tuning := in.opts.HNSW
		return func(dim int) (knn.Index, error) {
			optFns := append(append([]func(*hnsw.Options){}, tuning...), func(o *hnsw.Options) {
				o.Seed = seed
			})
			return hnsw.New(dim, optFns...)
		}
	}
	return func(dim int) (knn.Index, error) {
		return flat.New(dim)
	}
}
