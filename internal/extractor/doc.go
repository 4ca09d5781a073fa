// Package extractor extracts categorized metadata from individual files.
//
// The extractor produces an ExtractionResult per file: stat-derived basic
// fields for every file, plus category-specific fields (image, audio,
// video, document) obtained through pluggable extraction capabilities.
// Results are cached by a fingerprint of (absolute path, mtime, size), so
// an unmodified file is never re-extracted.
//
// # Basic Usage
//
//	ex := extractor.New(extractor.Config{Cache: resultCache})
//	res := ex.Extract(ctx, "/photos/a.jpg")
//	if res.Err != nil {
//	    // classified failure; res may still carry partial fields
//	}
//
// # Partial Failure
//
// Extraction never returns a hard failure once basic info succeeded: a
// failing category capability is recorded as a soft error on the result
// and the basic fields are still returned. Transient errors are retried
// with a linearly increasing backoff; the backoff is skipped as soon as
// the context is cancelled.
//
// # Capabilities
//
// Per-category decoding is an external collaborator. The registry is a
// static table populated at startup; categories without a wired capability
// hold an unavailable sentinel that reports a dependency_missing error for
// that category only:
//
//	caps := extractor.NewRegistry()
//	caps.Register(types.CategoryImage, exifCapability)
//
// # Batches
//
// ExtractBatch fans paths out to a bounded worker pool shared across all
// batches from one Extractor, with a per-file timeout, progress callbacks
// and cooperative cancellation. Cancellation returns the results collected
// so far, not an error.
package extractor
