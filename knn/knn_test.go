package knn_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scgo/mnncorrect/knn"
	"github.com/scgo/mnncorrect/knn/flat"
)

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, 0.0, knn.SquaredL2([]float64{1, 2}, []float64{1, 2}))
	assert.Equal(t, 25.0, knn.SquaredL2([]float64{0, 0}, []float64{3, 4}))
	assert.Equal(t, 2.0, knn.SquaredL2([]float64{1, 1, 0}, []float64{0, 0, 0}))
}

func TestBulkLoad(t *testing.T) {
	ctx := context.Background()
	idx, err := flat.New(2)
	require.NoError(t, err)

	vectors := [][]float64{{0, 0}, {1, 0}, {2, 0}}
	require.NoError(t, knn.BulkLoad(ctx, idx, vectors))
	require.Equal(t, 3, idx.Len())

	// Ids equal slice positions.
	for i, v := range vectors {
		results, err := idx.KNNSearch(ctx, v, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint32(i), results[0].ID)
		assert.Equal(t, 0.0, results[0].Distance)
	}
}

func TestBulkLoadPropagatesInsertError(t *testing.T) {
	idx, err := flat.New(2)
	require.NoError(t, err)

	err = knn.BulkLoad(context.Background(), idx, [][]float64{{0, 0}, {1}})
	var mismatch *knn.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 1, mismatch.Actual)
}

func TestBackendString(t *testing.T) {
	assert.Equal(t, "exact", knn.BackendExact.String())
	assert.Equal(t, "approximate", knn.BackendApproximate.String())
	assert.Equal(t, "unknown(7)", knn.Backend(7).String())
}
