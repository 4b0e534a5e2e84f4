package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromCounts(t *testing.T) {
	t.Run("TransposesToCellMajor", func(t *testing.T) {
		b, err := NewFromCounts("b1",
			[]string{"g1", "g2", "g3"},
			[]string{"c1", "c2"},
			[][]float64{
				{1, 2},
				{3, 4},
				{5, 6},
			},
			[]float64{1, 1},
		)
		require.NoError(t, err)

		assert.Equal(t, 2, b.NumCells())
		assert.Equal(t, 3, b.NumGenes())
		assert.Equal(t, []float64{1, 3, 5}, b.Counts[0])
		assert.Equal(t, []float64{2, 4, 6}, b.Counts[1])
	})

	t.Run("ShapeErrors", func(t *testing.T) {
		_, err := NewFromCounts("b1", []string{"g1"}, []string{"c1"}, [][]float64{{1}, {2}}, []float64{1})
		assert.Error(t, err)
		assert.IsType(t, &ErrShape{}, err)

		_, err = NewFromCounts("b1", []string{"g1"}, []string{"c1"}, [][]float64{{1, 2}}, []float64{1})
		assert.Error(t, err)

		_, err = NewFromCounts("b1", []string{"g1"}, []string{"c1"}, [][]float64{{1}}, []float64{1, 2})
		assert.Error(t, err)
	})
}

func TestNewFromExpression(t *testing.T) {
	b, err := NewFromExpression("b1", []string{"g1", "g2"}, []string{"c1"}, [][]float64{{0.5, 1.5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, b.Expr[0])

	_, err = NewFromExpression("b1", []string{"g1", "g2"}, []string{"c1"}, [][]float64{{0.5}})
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	b, err := NewFromExpression("b1", []string{"g1"}, []string{"c1"}, [][]float64{{1}})
	require.NoError(t, err)

	c := b.Clone()
	c.Expr[0][0] = 99
	c.Genes[0] = "other"

	assert.Equal(t, 1.0, b.Expr[0][0])
	assert.Equal(t, "g1", b.Genes[0])
}
