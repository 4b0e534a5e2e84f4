// Package pca projects the corrected expression matrix onto a fixed
// number of output dimensions via a mean-centered truncated SVD.
//
// Component signs are inherently ambiguous: an otherwise identical run
// may flip any component. By default the ambiguity is removed by flipping
// each component so its largest-magnitude gene loading is positive; the
// applied flips are reported so callers can audit them.
package pca

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDecomposition is returned when the SVD fails to converge.
	ErrDecomposition = errors.New("pca: decomposition failed")

	// ErrNonFinite is returned when the input contains NaN or Inf.
	ErrNonFinite = errors.New("pca: non-finite value in input matrix")
)

// ErrInsufficientRank indicates more requested components than the data
// can support.
type ErrInsufficientRank struct {
	Cells      int
	Genes      int
	Components int
}

func (e *ErrInsufficientRank) Error() string {
	return fmt.Sprintf("pca: %d components requested from %d cells x %d genes", e.Components, e.Cells, e.Genes)
}

// Options configures the reduction.
type Options struct {
	// FixSigns flips each component so that its largest-magnitude loading
	// is positive, making repeated runs reproducible.
	FixSigns bool
}

// DefaultOptions are the default reduction options.
var DefaultOptions = Options{
	FixSigns: true,
}

// Embedding is the reduced representation: one score vector per cell.
type Embedding struct {
	// Scores[i] holds the d component scores of cell i, in input order.
	Scores [][]float64

	// SingularValues are the singular values of the kept components.
	SingularValues []float64

	// SignFlips lists components whose sign was flipped by the
	// sign-fixing convention.
	SignFlips []int
}

// Reduce computes the top-d component scores of the cell-major matrix m
// (cells x genes), after centering each gene.
func Reduce(m [][]float64, d int, optFns ...func(o *Options)) (*Embedding, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	cells := len(m)
	if cells == 0 {
		return nil, &ErrInsufficientRank{Cells: 0, Genes: 0, Components: d}
	}
	genes := len(m[0])
	if d < 1 || d > cells || d > genes {
		return nil, &ErrInsufficientRank{Cells: cells, Genes: genes, Components: d}
	}

	mean := make([]float64, genes)
	for _, row := range m {
		for g, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, ErrNonFinite
			}
			mean[g] += v
		}
	}
	for g := range mean {
		mean[g] /= float64(cells)
	}

	centered := mat.NewDense(cells, genes, nil)
	for i, row := range m {
		for g, v := range row {
			centered.Set(i, g, v-mean[g])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, ErrDecomposition
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	flip := make([]bool, d)
	var flips []int
	if opts.FixSigns {
		for j := 0; j < d; j++ {
			var best float64
			var bestSign float64 = 1
			for g := 0; g < genes; g++ {
				if a := math.Abs(v.At(g, j)); a > best {
					best = a
					bestSign = math.Copysign(1, v.At(g, j))
				}
			}
			if bestSign < 0 {
				flip[j] = true
				flips = append(flips, j)
			}
		}
	}

	scores := make([][]float64, cells)
	for i := 0; i < cells; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			s := u.At(i, j) * values[j]
			if flip[j] {
				s = -s
			}
			row[j] = s
		}
		scores[i] = row
	}

	return &Embedding{
		Scores:         scores,
		SingularValues: append([]float64(nil), values[:d]...),
		SignFlips:      flips,
	}, nil
}
