package mnncorrect

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWithBatch(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.WithBatch("day3").DebugContext(context.Background(), "anchors matched", "count", 7)

	out := buf.String()
	assert.Contains(t, out, "batch=day3")
	assert.Contains(t, out, "count=7")
	assert.Contains(t, out, "anchors matched")
}

func TestLoggerLogMergeStep(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l.LogMergeStep(context.Background(), MergeStep{
		Batch:         "droplet",
		Anchors:       12,
		Fallbacks:     2,
		FallbackCells: roaring.BitmapOf(4, 5),
		PoolSize:      40,
		Duration:      3 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "merge step completed")
	assert.Contains(t, out, "batch=droplet")
	assert.Contains(t, out, "anchors=12")
	assert.Contains(t, out, "fallbacks=2")
	assert.Contains(t, out, "pool_size=40")
}

func TestNoopLoggerDiscards(t *testing.T) {
	l := NoopLogger()
	require.NotNil(t, l)
	assert.False(t, l.Handler().Enabled(context.Background(), slog.LevelError))
}
