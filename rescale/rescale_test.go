package rescale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scgo/mnncorrect/matrix"
)

func countsBatch(name string, counts [][]float64, sizeFactors []float64) *matrix.Batch {
	genes := make([]string, len(counts[0]))
	for i := range genes {
		genes[i] = "g"
	}
	cells := make([]string, len(counts))
	for i := range cells {
		cells[i] = name + "-cell"
	}
	return &matrix.Batch{
		Name:        name,
		Genes:       genes,
		Cells:       cells,
		Counts:      counts,
		SizeFactors: sizeFactors,
	}
}

func TestBatches(t *testing.T) {
	t.Run("EqualizesDepthOffset", func(t *testing.T) {
		// Same relative profiles, four times the sequencing depth in b.
		a := countsBatch("a", [][]float64{{2, 4}, {4, 2}}, []float64{1, 1})
		b := countsBatch("b", [][]float64{{8, 16}, {16, 8}}, []float64{1, 1})

		out, err := Batches([]*matrix.Batch{a, b})
		require.NoError(t, err)

		// Reference is the lower-median-depth batch a, so its factors
		// stay put and b is scaled by 24/6 = 4.
		assert.Equal(t, []float64{1, 1}, out[0].SizeFactors)
		assert.Equal(t, []float64{4, 4}, out[1].SizeFactors)

		for c := range out[0].Expr {
			for g := range out[0].Expr[c] {
				assert.InDelta(t, out[0].Expr[c][g], out[1].Expr[c][g], 1e-12)
			}
		}
	})

	t.Run("LogNormalization", func(t *testing.T) {
		a := countsBatch("a", [][]float64{{3}}, []float64{1})
		out, err := Batches([]*matrix.Batch{a})
		require.NoError(t, err)
		assert.InDelta(t, math.Log2(4), out[0].Expr[0][0], 1e-12)
	})

	t.Run("InputUntouched", func(t *testing.T) {
		a := countsBatch("a", [][]float64{{2, 4}}, []float64{1})
		b := countsBatch("b", [][]float64{{8, 16}}, []float64{1})

		_, err := Batches([]*matrix.Batch{a, b})
		require.NoError(t, err)
		assert.Equal(t, []float64{1}, b.SizeFactors)
		assert.Nil(t, b.Expr)
	})

	t.Run("ZeroCells", func(t *testing.T) {
		empty := &matrix.Batch{Name: "empty", Genes: []string{"g"}}
		_, err := Batches([]*matrix.Batch{empty})

		var noCells *ErrNoCells
		require.ErrorAs(t, err, &noCells)
		assert.Equal(t, "empty", noCells.Batch)
	})

	t.Run("MissingCounts", func(t *testing.T) {
		b := &matrix.Batch{Name: "b", Genes: []string{"g"}, Cells: []string{"c"}}
		_, err := Batches([]*matrix.Batch{b})
		assert.IsType(t, &ErrMissingCounts{}, err)
	})

	t.Run("InvalidSizeFactor", func(t *testing.T) {
		b := countsBatch("b", [][]float64{{1}}, []float64{0})
		_, err := Batches([]*matrix.Batch{b})

		var bad *ErrInvalidSizeFactor
		require.ErrorAs(t, err, &bad)
		assert.Equal(t, 0, bad.Cell)
	})
}

func TestReferenceBatch(t *testing.T) {
	// Odd count: true median. Even count: lower median, deterministically.
	assert.Equal(t, 0, referenceBatch([]float64{5, 1, 9}))
	assert.Equal(t, 1, referenceBatch([]float64{10, 4}))
}
