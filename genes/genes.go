// Package genes aligns batches onto a shared gene universe.
//
// All downstream stages assume every batch carries the same genes in the
// same order; Universe computes that shared axis and Align permutes a
// batch onto it.
package genes

import (
	"errors"
	"fmt"
	"sort"

	"github.com/scgo/mnncorrect/matrix"
)

// ErrEmptyUniverse is returned when the batches share no gene identifier.
var ErrEmptyUniverse = errors.New("genes: empty gene intersection")

// ErrMissingGene indicates a universe gene absent from a batch.
// Only reachable when Align is called with a foreign universe.
type ErrMissingGene struct {
	Batch string
	Gene  string
}

func (e *ErrMissingGene) Error() string {
	return fmt.Sprintf("genes: batch %q does not contain gene %q", e.Batch, e.Gene)
}

// Universe returns the intersection of gene identifiers across all
// batches, in lexical order. The order is deterministic so repeated runs
// produce identical axes regardless of input gene ordering.
func Universe(batches []*matrix.Batch) ([]string, error) {
	if len(batches) == 0 {
		return nil, ErrEmptyUniverse
	}

	counts := make(map[string]int, len(batches[0].Genes))
	for _, b := range batches {
		seen := make(map[string]struct{}, len(b.Genes))
		for _, g := range b.Genes {
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			counts[g]++
		}
	}

	universe := make([]string, 0, len(counts))
	for g, n := range counts {
		if n == len(batches) {
			universe = append(universe, g)
		}
	}
	if len(universe) == 0 {
		return nil, ErrEmptyUniverse
	}

	sort.Strings(universe)
	return universe, nil
}

// Align returns a copy of b restricted and reordered to the given
// universe. The input batch is not modified.
func Align(b *matrix.Batch, universe []string) (*matrix.Batch, error) {
	pos := make(map[string]int, len(b.Genes))
	for i, g := range b.Genes {
		// First occurrence wins for duplicated identifiers.
		if _, ok := pos[g]; !ok {
			pos[g] = i
		}
	}

	perm := make([]int, len(universe))
	for i, g := range universe {
		src, ok := pos[g]
		if !ok {
			return nil, &ErrMissingGene{Batch: b.Name, Gene: g}
		}
		perm[i] = src
	}

	out := &matrix.Batch{
		Name:        b.Name,
		Genes:       append([]string(nil), universe...),
		Cells:       append([]string(nil), b.Cells...),
		SizeFactors: append([]float64(nil), b.SizeFactors...),
	}
	if b.Counts != nil {
		out.Counts = permuteRows(b.Counts, perm)
	}
	if b.Expr != nil {
		out.Expr = permuteRows(b.Expr, perm)
	}
	return out, nil
}

// AlignAll intersects the batches' genes and aligns every batch to the
// resulting universe.
func AlignAll(batches []*matrix.Batch) ([]*matrix.Batch, []string, error) {
	universe, err := Universe(batches)
	if err != nil {
		return nil, nil, err
	}
	aligned := make([]*matrix.Batch, len(batches))
	for i, b := range batches {
		a, err := Align(b, universe)
		if err != nil {
			return nil, nil, err
		}
		aligned[i] = a
	}
	return aligned, universe, nil
}

func permuteRows(cellMajor [][]float64, perm []int) [][]float64 {
	out := make([][]float64, len(cellMajor))
	for i, row := range cellMajor {
		v := make([]float64, len(perm))
		for j, src := range perm {
			v[j] = row[src]
		}
		out[i] = v
	}
	return out
}
