package snapshot

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scgo/mnncorrect"
)

func sampleResult() *mnncorrect.Result {
	return &mnncorrect.Result{
		Embedding: [][]float64{{0.5, -1.5}, {2.25, 0}, {-3, 1}},
		Corrected: [][]float64{{1, 0, 2}, {0, 1, 1}, {2, 2, 0}},
		Genes:     []string{"GENE-A", "GENE-B", "GENE-C"},
		CellIDs:   []string{"ref-0", "ref-1", "day3-0"},
		BatchOf:   []string{"ref", "ref", "day3"},
		Report: &mnncorrect.MergeReport{
			Order: []string{"ref", "day3"},
			Steps: []mnncorrect.MergeStep{
				{
					Batch:         "day3",
					Anchors:       7,
					Fallbacks:     1,
					FallbackCells: roaring.BitmapOf(2),
					PoolSize:      3,
					Duration:      12 * time.Millisecond,
				},
			},
			CellsPerBatch: map[string]int{"ref": 2, "day3": 1},
			SignFlips:     []int{1},
		},
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.mnn")

	res := sampleResult()
	require.NoError(t, Save(path, res))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, res.Embedding, got.Embedding)
	assert.Equal(t, res.Corrected, got.Corrected)
	assert.Equal(t, res.Genes, got.Genes)
	assert.Equal(t, res.CellIDs, got.CellIDs)
	assert.Equal(t, res.BatchOf, got.BatchOf)

	require.NotNil(t, got.Report)
	assert.Equal(t, res.Report.Order, got.Report.Order)
	assert.Equal(t, res.Report.CellsPerBatch, got.Report.CellsPerBatch)
	assert.Equal(t, res.Report.SignFlips, got.Report.SignFlips)

	require.Len(t, got.Report.Steps, 1)
	step := got.Report.Steps[0]
	assert.Equal(t, "day3", step.Batch)
	assert.Equal(t, 7, step.Anchors)
	assert.Equal(t, uint64(1), step.Fallbacks)
	assert.True(t, step.FallbackCells.Contains(2))
	assert.Equal(t, 3, step.PoolSize)
	assert.Equal(t, 12*time.Millisecond, step.Duration)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.mnn")

	require.NoError(t, Save(path, sampleResult()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run.mnn", entries[0].Name())
}

func TestLoadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-snapshot")
	require.NoError(t, os.WriteFile(path, []byte("gene,count\nA,1\n"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.mnn")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.LittleEndian, header{Magic: Magic, Version: Version + 1}))
	require.NoError(t, f.Close())

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.mnn"))
	assert.Error(t, err)
}
