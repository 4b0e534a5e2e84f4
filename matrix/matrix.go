// Package matrix defines the Batch value type that the correction
// pipeline operates on.
//
// A Batch is one dataset produced by one technology/protocol. Vectors are
// stored cell-major: row i is the per-gene vector of cell i, over the
// batch's gene axis. Upstream loaders usually hold genes x cells matrices;
// NewFromCounts accepts that orientation and transposes once on entry so
// every downstream stage can treat a cell as a plain []float64.
package matrix

import (
	"fmt"
	"slices"
)

// Batch holds one dataset's expression data.
//
// Counts and SizeFactors are optional: they are required only when the
// integrator recomputes depth-rescaled log expression. Expr is the
// log-normalized expression consumed by neighbor search and correction.
type Batch struct {
	// Name identifies the batch (technology/protocol label).
	Name string

	// Genes are the row identifiers of the original matrix, one per
	// expression dimension, in the batch's current gene order.
	Genes []string

	// Cells are the per-cell identifiers, one per row of Expr/Counts.
	Cells []string

	// Counts holds raw counts, cell-major (Counts[i][g]). May be nil when
	// the caller supplies precomputed Expr.
	Counts [][]float64

	// SizeFactors holds one per-cell size factor, computed by an external
	// normalization step. May be nil when Counts is nil.
	SizeFactors []float64

	// Expr holds log-normalized expression, cell-major (Expr[i][g]).
	Expr [][]float64
}

// ErrShape indicates inconsistent matrix/label shapes.
type ErrShape struct {
	Batch  string
	Reason string
}

func (e *ErrShape) Error() string {
	return fmt.Sprintf("matrix: batch %q: %s", e.Batch, e.Reason)
}

// NewFromCounts builds a Batch from a genes x cells count matrix plus
// per-cell size factors. The matrix is transposed to cell-major storage.
func NewFromCounts(name string, genes, cells []string, counts [][]float64, sizeFactors []float64) (*Batch, error) {
	if len(counts) != len(genes) {
		return nil, &ErrShape{Batch: name, Reason: fmt.Sprintf("count matrix has %d rows, %d gene labels", len(counts), len(genes))}
	}
	for g, row := range counts {
		if len(row) != len(cells) {
			return nil, &ErrShape{Batch: name, Reason: fmt.Sprintf("gene row %d has %d columns, %d cell labels", g, len(row), len(cells))}
		}
	}
	if len(sizeFactors) != len(cells) {
		return nil, &ErrShape{Batch: name, Reason: fmt.Sprintf("%d size factors for %d cells", len(sizeFactors), len(cells))}
	}

	cellMajor := make([][]float64, len(cells))
	for i := range cells {
		v := make([]float64, len(genes))
		for g := range genes {
			v[g] = counts[g][i]
		}
		cellMajor[i] = v
	}

	return &Batch{
		Name:        name,
		Genes:       slices.Clone(genes),
		Cells:       slices.Clone(cells),
		Counts:      cellMajor,
		SizeFactors: slices.Clone(sizeFactors),
	}, nil
}

// NewFromExpression builds a Batch directly from cell-major log-normalized
// expression vectors. Used when depth rescaling is handled (or skipped)
// by the caller.
func NewFromExpression(name string, genes, cells []string, expr [][]float64) (*Batch, error) {
	if len(expr) != len(cells) {
		return nil, &ErrShape{Batch: name, Reason: fmt.Sprintf("%d expression rows for %d cell labels", len(expr), len(cells))}
	}
	for i, v := range expr {
		if len(v) != len(genes) {
			return nil, &ErrShape{Batch: name, Reason: fmt.Sprintf("cell %d has %d values, %d gene labels", i, len(v), len(genes))}
		}
	}

	rows := make([][]float64, len(expr))
	for i, v := range expr {
		rows[i] = slices.Clone(v)
	}

	return &Batch{
		Name:  name,
		Genes: slices.Clone(genes),
		Cells: slices.Clone(cells),
		Expr:  rows,
	}, nil
}

// NumCells returns the number of cells in the batch.
func (b *Batch) NumCells() int { return len(b.Cells) }

// NumGenes returns the number of genes on the batch's current gene axis.
func (b *Batch) NumGenes() int { return len(b.Genes) }

// Clone returns a deep copy. Stages that rewrite a batch operate on a
// clone so the caller's value is never mutated in place.
func (b *Batch) Clone() *Batch {
	c := &Batch{
		Name:        b.Name,
		Genes:       slices.Clone(b.Genes),
		Cells:       slices.Clone(b.Cells),
		SizeFactors: slices.Clone(b.SizeFactors),
	}
	if b.Counts != nil {
		c.Counts = make([][]float64, len(b.Counts))
		for i, row := range b.Counts {
			c.Counts[i] = slices.Clone(row)
		}
	}
	if b.Expr != nil {
		c.Expr = make([][]float64, len(b.Expr))
		for i, row := range b.Expr {
			c.Expr[i] = slices.Clone(row)
		}
	}
	return c
}
