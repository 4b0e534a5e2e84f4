package mnncorrect

import (
	"github.com/scgo/mnncorrect/knn"
	"github.com/scgo/mnncorrect/knn/hnsw"
)

// Options configures an Integrator beyond the required k and d.
type Options struct {
	// Bandwidth is the Gaussian kernel width used to smooth raw
	// correction vectors. Larger values over-smooth and risk removing
	// real biological signal; smaller values under-smooth and risk
	// residual batch effect.
	Bandwidth float64

	// MergeOrder is the required, explicit order in which batches are
	// folded into the reference pool, by batch name. Results depend on
	// it: each batch is corrected against the already-merged pool only.
	MergeOrder []string

	// Backend selects the nearest-neighbor implementation. The exact
	// backend guarantees true mutuality; the approximate backend trades
	// recall for speed.
	Backend knn.Backend

	// Seed drives any randomized index construction, for reproducibility.
	Seed int64

	// SmoothingAnchors is m, the number of nearest anchors averaged into
	// each query cell's correction.
	SmoothingAnchors int

	// Rescale recomputes log expression from counts and depth-rescaled
	// size factors before merging. Disable it when batches already carry
	// cross-batch comparable expression.
	Rescale bool

	// FixSigns applies the largest-loading-positive sign convention to
	// the output components.
	FixSigns bool

	// Parallelism bounds worker goroutines for neighbor queries and
	// smoothing. Zero means GOMAXPROCS. The result does not depend on it.
	Parallelism int

	// HNSW tunes the approximate backend. The run seed always wins over
	// a seed set here.
	HNSW []func(o *hnsw.Options)

	// Logger receives per-step progress. Defaults to a no-op logger.
	Logger *Logger
}

// DefaultOptions are the defaults applied by New.
var DefaultOptions = Options{
	Bandwidth:        1,
	Backend:          knn.BackendExact,
	Seed:             1,
	SmoothingAnchors: 20,
	Rescale:          true,
	FixSigns:         true,
}

// WithBandwidth sets the smoothing kernel width.
func WithBandwidth(bandwidth float64) func(o *Options) {
	return func(o *Options) { o.Bandwidth = bandwidth }
}

// WithMergeOrder sets the explicit batch merge order.
func WithMergeOrder(order ...string) func(o *Options) {
	return func(o *Options) { o.MergeOrder = order }
}

// WithBackend selects the nearest-neighbor backend.
func WithBackend(backend knn.Backend) func(o *Options) {
	return func(o *Options) { o.Backend = backend }
}

// WithSeed sets the seed for randomized index construction.
func WithSeed(seed int64) func(o *Options) {
	return func(o *Options) { o.Seed = seed }
}

// WithSmoothingAnchors sets m, the anchors averaged per query cell.
func WithSmoothingAnchors(m int) func(o *Options) {
	return func(o *Options) { o.SmoothingAnchors = m }
}

// WithRescale toggles cross-batch depth rescaling.
func WithRescale(enabled bool) func(o *Options) {
	return func(o *Options) { o.Rescale = enabled }
}

// WithFixSigns toggles the component sign-fixing convention.
func WithFixSigns(enabled bool) func(o *Options) {
	return func(o *Options) { o.FixSigns = enabled }
}

// WithParallelism bounds worker goroutines.
func WithParallelism(n int) func(o *Options) {
	return func(o *Options) { o.Parallelism = n }
}

// WithHNSWOptions tunes the approximate backend.
func WithHNSWOptions(optFns ...func(o *hnsw.Options)) func(o *Options) {
	return func(o *Options) { o.HNSW = optFns }
}

// WithLogger sets the progress logger.
func WithLogger(logger *Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}
