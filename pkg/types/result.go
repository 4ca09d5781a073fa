package types

import "time"

// Recovery methods recorded when a degraded extraction still produced a
// usable result.
const (
	RecoveryBasicOnly        = "basic_only"
	RecoveryPartialCorrupted = "partial_corrupted"
)

// ExtractionResult holds the metadata extracted for one file. Once
// returned it is owned by the caller; the cache stores its own copy.
type ExtractionResult struct {
	Path     string
	Category Category

	// Fields maps field name to value. Values are scalars, []any or
	// nested map[string]any. Per-category fields are nested under the
	// category name ("image", "audio", ...).
	Fields map[string]any

	// Err is set when extraction failed or degraded. A result can carry
	// both Fields and Err when recovery produced partial data.
	Err *ExtractError

	// CategoryErrors holds soft per-category failures that did not
	// prevent basic info from being returned.
	CategoryErrors map[Category]*ExtractError

	ExtractedAt time.Time
	// Elapsed is the wall time spent producing this result, including
	// retries and backoff. Cache hits carry the lookup time, not the
	// original extraction time.
	Elapsed        time.Duration
	FromCache      bool
	Attempts       int
	RecoveryMethod string
}

// Failed reports whether the result carries a hard failure.
func (r *ExtractionResult) Failed() bool {
	return r.Err != nil
}

// Clone returns a deep copy. Cache internals are never aliased to
// caller-visible state.
func (r *ExtractionResult) Clone() *ExtractionResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Fields = cloneFields(r.Fields)
	c.Err = r.Err.Clone()
	if r.CategoryErrors != nil {
		c.CategoryErrors = make(map[Category]*ExtractError, len(r.CategoryErrors))
		for k, v := range r.CategoryErrors {
			c.CategoryErrors[k] = v.Clone()
		}
	}
	return &c
}

// EstimateBytes approximates the in-memory size of the result for the
// cache's byte budget. It counts strings and container overhead, not
// exact allocator sizes.
func (r *ExtractionResult) EstimateBytes() int {
	if r == nil {
		return 0
	}
	size := 128 + len(r.Path) + len(r.RecoveryMethod)
	size += estimateValue(r.Fields)
	if r.Err != nil {
		size += 64 + len(r.Err.Message)
	}
	for _, e := range r.CategoryErrors {
		size += 64 + len(e.Message)
	}
	return size
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneFields(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

func estimateValue(v any) int {
	switch val := v.(type) {
	case string:
		return 16 + len(val)
	case map[string]any:
		size := 48
		for k, e := range val {
			size += 16 + len(k) + estimateValue(e)
		}
		return size
	case []any:
		size := 24
		for _, e := range val {
			size += estimateValue(e)
		}
		return size
	case []string:
		size := 24
		for _, s := range val {
			size += 16 + len(s)
		}
		return size
	default:
		return 16
	}
}

// ScanResult wraps an ExtractionResult with the originating path, the
// elapsed processing time and the error classification. It is created by
// the worker pool per file and never mutated after construction.
type ScanResult struct {
	Path    string
	Result  *ExtractionResult
	Elapsed time.Duration
	Err     *ExtractError
}

// Failed reports whether this file's scan carried a hard failure. The
// receiver is a value so the method is callable on map and slice elements.
func (s ScanResult) Failed() bool {
	if s.Err != nil {
		return true
	}
	return s.Result != nil && s.Result.Failed()
}
