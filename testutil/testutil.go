// Package testutil provides seeded random data generators shared by the
// package tests.
package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/scgo/mnncorrect/matrix"
)

// RNG is a thread-safe seeded random number generator.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Float64 returns a pseudo-random number in [0.0, 1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NormFloat64 returns a standard-normal pseudo-random number.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// FillNormal fills dst with normal values of the given mean and
// standard deviation. Locks once per call.
func (r *RNG) FillNormal(dst []float64, mean, stddev float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = mean + stddev*r.rand.NormFloat64()
	}
}

// GeneNames returns n synthetic gene identifiers g000, g001, ...
func GeneNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("g%03d", i)
	}
	return names
}

// CellNames returns n cell identifiers with the given prefix.
func CellNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return names
}

// ExpressionBatch wraps cell-major expression vectors into a Batch with
// generated cell identifiers.
func ExpressionBatch(name string, genes []string, expr [][]float64) *matrix.Batch {
	b, err := matrix.NewFromExpression(name, genes, CellNames(name, len(expr)), expr)
	if err != nil {
		panic(err)
	}
	return b
}

// GaussianCloud returns cells normal vectors centered on center with the
// given spread.
func GaussianCloud(rng *RNG, cells int, center []float64, spread float64) [][]float64 {
	out := make([][]float64, cells)
	for i := range out {
		v := make([]float64, len(center))
		for j, c := range center {
			v[j] = c + spread*rng.NormFloat64()
		}
		out[i] = v
	}
	return out
}

// Shifted returns a copy of vectors with shift added to every vector.
func Shifted(vectors [][]float64, shift []float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		s := make([]float64, len(v))
		for j := range v {
			s[j] = v[j] + shift[j]
		}
		out[i] = s
	}
	return out
}
