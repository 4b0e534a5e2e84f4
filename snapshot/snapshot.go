// Package snapshot persists integration results so downstream clustering
// and visualization can consume a corrected run without recomputing it.
//
// A snapshot is a single file: a fixed header identifying format and
// version, followed by a zstd-compressed gob payload.
package snapshot

import (
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/scgo/mnncorrect"
)

const (
	// Magic identifies snapshot files (ASCII "MNN1").
	Magic = 0x4D4E4E31

	// Version is the current snapshot format version.
	Version = 1
)

var (
	// ErrInvalidMagic indicates a file that is not a snapshot.
	ErrInvalidMagic = errors.New("snapshot: invalid magic number")

	// ErrInvalidVersion indicates an unsupported format version.
	ErrInvalidVersion = errors.New("snapshot: unsupported version")
)

type header struct {
	Magic   uint32
	Version uint32
}

// Gob-friendly mirrors of the result types: roaring bitmaps are stored
// as plain id arrays, durations as nanoseconds.
type stepPayload struct {
	Batch         string
	Anchors       int
	FallbackCells []uint32
	PoolSize      int
	DurationNS    int64
}

type reportPayload struct {
	Order         []string
	Steps         []stepPayload
	CellsPerBatch map[string]int
	SignFlips     []int
}

type payload struct {
	Embedding [][]float64
	Corrected [][]float64
	Genes     []string
	CellIDs   []string
	BatchOf   []string
	Report    reportPayload
}

// Save writes the result to path, replacing any existing file only after
// a fully written temp file is renamed into place.
func Save(path string, res *mnncorrect.Result) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("snapshot: create: %w", err)
	}
	defer os.Remove(tmp)

	if err := write(f, res); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

func write(f *os.File, res *mnncorrect.Result) error {
	if err := binary.Write(f, binary.LittleEndian, header{Magic: Magic, Version: Version}); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("snapshot: compressor: %w", err)
	}

	p := payload{
		Embedding: res.Embedding,
		Corrected: res.Corrected,
		Genes:     res.Genes,
		CellIDs:   res.CellIDs,
		BatchOf:   res.BatchOf,
	}
	if res.Report != nil {
		p.Report = reportPayload{
			Order:         res.Report.Order,
			CellsPerBatch: res.Report.CellsPerBatch,
			SignFlips:     res.Report.SignFlips,
		}
		for _, s := range res.Report.Steps {
			sp := stepPayload{
				Batch:      s.Batch,
				Anchors:    s.Anchors,
				PoolSize:   s.PoolSize,
				DurationNS: int64(s.Duration),
			}
			if s.FallbackCells != nil {
				sp.FallbackCells = s.FallbackCells.ToArray()
			}
			p.Report.Steps = append(p.Report.Steps, sp)
		}
	}

	if err := gob.NewEncoder(zw).Encode(&p); err != nil {
		_ = zw.Close()
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("snapshot: flush: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*mnncorrect.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	var h header
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	if h.Magic != Magic {
		return nil, ErrInvalidMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, h.Version)
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompressor: %w", err)
	}
	defer zr.Close()

	var p payload
	if err := gob.NewDecoder(zr).Decode(&p); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}

	report := &mnncorrect.MergeReport{
		Order:         p.Report.Order,
		CellsPerBatch: p.Report.CellsPerBatch,
		SignFlips:     p.Report.SignFlips,
	}
	for _, sp := range p.Report.Steps {
		fb := roaring.BitmapOf(sp.FallbackCells...)
		report.Steps = append(report.Steps, mnncorrect.MergeStep{
			Batch:         sp.Batch,
			Anchors:       sp.Anchors,
			Fallbacks:     fb.GetCardinality(),
			FallbackCells: fb,
			PoolSize:      sp.PoolSize,
			Duration:      time.Duration(sp.DurationNS),
		})
	}

	return &mnncorrect.Result{
		Embedding: p.Embedding,
		Corrected: p.Corrected,
		Genes:     p.Genes,
		CellIDs:   p.CellIDs,
		BatchOf:   p.BatchOf,
		Report:    report,
	}, nil
}
