// Package mnncorrect corrects technical batch effects across single-cell
// RNA-sequencing datasets via mutual nearest neighbors, producing a
// shared low-dimensional embedding in which cells cluster by biology
// rather than by measurement technology.
//
// The pipeline aligns every batch onto the shared gene intersection,
// removes systematic between-batch depth offsets, then folds batches
// into a growing reference pool in an explicit, configured order. Each
// merge step finds mutual k-nearest-neighbor anchor pairs between the
// pool and the incoming batch, smooths the per-anchor correction
// vectors with a Gaussian kernel, applies them additively, and appends
// the corrected batch to the pool. The final pool is reduced to d
// dimensions with a mean-centered truncated SVD.
//
// # Quick start
//
//	ctx := context.Background()
//
//	it, err := mnncorrect.New(20, 50,
//	    mnncorrect.WithMergeOrder("10x", "smartseq2", "celseq"),
//	    mnncorrect.WithBandwidth(2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := it.Integrate(ctx, batches)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = res.Embedding // one d-dimensional vector per cell
//	_ = res.Report    // anchor counts, fallbacks, sign flips
//
// # Merge order
//
// Merging is not commutative: each batch is corrected only against the
// already-merged pool, so the configured order is part of the run and is
// required configuration, never inferred from argument order. Identical
// batches merge order-invariantly; distinct batches generally do not.
//
// # Backends
//
// The exact backend guarantees true mutuality of every anchor pair. The
// approximate HNSW backend trades recall for speed; pairs are then
// mutual according to that backend's own neighbor lists. Approximate
// index construction is seeded for reproducibility.
package mnncorrect
