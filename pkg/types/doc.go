// Package types provides shared type definitions for the metascan pipeline.
//
// This package defines the domain types passed between the scanner, the
// extractor, the result cache and the catalog: file categories, extraction
// results, classified errors and aggregate statistics.
//
// # Core Types
//
// ExtractionResult holds the metadata extracted for one file:
//
//	res := &types.ExtractionResult{
//	    Path:     "/photos/a.jpg",
//	    Category: types.CategoryImage,
//	    Fields:   map[string]any{"size": int64(2048), "mime_type": "image/jpeg"},
//	}
//
// ScanResult wraps an ExtractionResult with the originating path, the
// elapsed processing time and a classified error, and is what a directory
// scan returns per file.
//
// # Error Classification
//
// ExtractError carries the taxonomy used across the pipeline instead of
// raw errors:
//
//	if res.Err != nil && res.Err.Kind == types.ErrFileAccess {
//	    // path missing or unreadable; not retried
//	}
//
// Errors never cross the extractor or scanner boundary as panics; every
// public operation returns a result value that may carry an ExtractError.
//
// # Statistics
//
// Statistics is a pure single-pass aggregation over scan results:
//
//	stats := scanner.FileStatistics(results)
//	fmt.Printf("%d scanned, %d failed\n", stats.TotalFiles, stats.FailedScans)
package types
