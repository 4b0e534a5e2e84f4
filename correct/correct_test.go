package correct

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scgo/mnncorrect/mnn"
)

func TestCompute(t *testing.T) {
	ctx := context.Background()

	t.Run("UniformShift", func(t *testing.T) {
		// Every raw vector is (0, -5), so any weighted average is (0, -5)
		// for every query cell, anchor or not.
		ref := [][]float64{{0, 0}, {1, 0}, {2, 0}}
		query := [][]float64{{0, 5}, {1, 5}, {2, 5}, {0.5, 5}}
		pairs := []mnn.AnchorPair{
			{Ref: 0, Query: 0},
			{Ref: 1, Query: 1},
			{Ref: 2, Query: 2},
		}

		res, err := Compute(ctx, pairs, ref, query, 1)
		require.NoError(t, err)
		require.Len(t, res.Vectors, 4)
		assert.Empty(t, res.Fallbacks)
		for _, v := range res.Vectors {
			assert.InDelta(t, 0, v[0], 1e-12)
			assert.InDelta(t, -5, v[1], 1e-12)
		}
	})

	t.Run("NearAnchorDominates", func(t *testing.T) {
		// Two anchors with opposing raw vectors. A query cell sitting on
		// one anchor with a narrow kernel takes almost all of its weight
		// from that anchor.
		ref := [][]float64{{1}, {-1}}
		query := [][]float64{{0}, {10}, {0.001}}
		pairs := []mnn.AnchorPair{
			{Ref: 0, Query: 0}, // raw +1
			{Ref: 1, Query: 1}, // raw -11
		}

		res, err := Compute(ctx, pairs, ref, query, 0.5)
		require.NoError(t, err)

		// Cell 2 is at distance ~0 from anchor 0 and 10 from anchor 1.
		assert.InDelta(t, 1, res.Vectors[2][0], 1e-6)
		// Cell 1 sits on anchor 1.
		assert.InDelta(t, -11, res.Vectors[1][0], 1e-6)
	})

	t.Run("SmoothingLimitedToNearestAnchors", func(t *testing.T) {
		// With m = 1 only the closest anchor contributes, so the result
		// is that anchor's raw vector exactly even with a wide kernel.
		ref := [][]float64{{10}, {-10}}
		query := [][]float64{{0}, {100}}
		pairs := []mnn.AnchorPair{
			{Ref: 0, Query: 0}, // raw +10
			{Ref: 1, Query: 1}, // raw -110
		}

		res, err := Compute(ctx, pairs, ref, query, 1000, func(o *Options) {
			o.Anchors = 1
		})
		require.NoError(t, err)
		assert.InDelta(t, 10, res.Vectors[0][0], 1e-12)
		assert.InDelta(t, -110, res.Vectors[1][0], 1e-12)
	})

	t.Run("UnderflowFallsBackToNearestAnchor", func(t *testing.T) {
		ref := [][]float64{{0, 1}}
		query := [][]float64{{0, 0}, {1000, 0}}
		pairs := []mnn.AnchorPair{{Ref: 0, Query: 0}} // raw (0, 1)

		// Bandwidth small enough that exp(-1000^2 / (2*0.01^2))
		// underflows to zero for the distant cell.
		res, err := Compute(ctx, pairs, ref, query, 0.01)
		require.NoError(t, err)

		assert.Equal(t, []uint32{1}, res.Fallbacks)
		assert.Equal(t, []float64{0, 1}, res.Vectors[1])
		// The anchor cell itself smooths normally.
		assert.InDelta(t, 1, res.Vectors[0][1], 1e-12)
	})

	t.Run("NoAnchors", func(t *testing.T) {
		_, err := Compute(ctx, nil, [][]float64{{0}}, [][]float64{{0}}, 1)
		assert.ErrorIs(t, err, ErrNoAnchors)
	})

	t.Run("InvalidBandwidth", func(t *testing.T) {
		pairs := []mnn.AnchorPair{{Ref: 0, Query: 0}}
		ref := [][]float64{{0}}
		query := [][]float64{{0}}

		for _, bw := range []float64{0, -1, math.Inf(1), math.NaN()} {
			_, err := Compute(ctx, pairs, ref, query, bw)
			assert.ErrorIs(t, err, ErrInvalidBandwidth, "bandwidth %v", bw)
		}
	})

	t.Run("SerialMatchesParallel", func(t *testing.T) {
		ref := [][]float64{{1, 2}, {3, 4}, {5, 6}}
		query := [][]float64{{0, 0}, {2, 2}, {4, 4}, {6, 6}}
		pairs := []mnn.AnchorPair{
			{Ref: 0, Query: 0},
			{Ref: 1, Query: 2},
			{Ref: 2, Query: 3},
		}

		serial, err := Compute(ctx, pairs, ref, query, 2, func(o *Options) {
			o.Parallelism = 1
		})
		require.NoError(t, err)
		parallel, err := Compute(ctx, pairs, ref, query, 2, func(o *Options) {
			o.Parallelism = 8
		})
		require.NoError(t, err)
		assert.Equal(t, serial, parallel)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		pairs := []mnn.AnchorPair{{Ref: 0, Query: 0}}
		_, err := Compute(cancelled, pairs, [][]float64{{0}}, [][]float64{{0}}, 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestApply(t *testing.T) {
	expr := [][]float64{{1, 2}, {3, 4}}
	corrections := [][]float64{{0.5, -0.5}, {0, 1}}

	out := Apply(expr, corrections)

	assert.Equal(t, [][]float64{{1.5, 1.5}, {3, 5}}, out)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, expr, "input must stay intact")
}
