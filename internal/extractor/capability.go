package extractor

import (
	"context"
	"fmt"

	"github.com/metascan/metascan/pkg/types"
)

// CapabilityFunc extracts category-specific fields for one file. It is
// implemented by external decoding libraries; the extractor only needs it
// as an injectable function per category.
type CapabilityFunc func(ctx context.Context, path string) (map[string]any, error)

// Registry is the static capability table consulted per category. It is
// populated at startup; categories whose dependency is absent hold an
// unavailable sentinel instead of a nil entry.
type Registry map[types.Category]CapabilityFunc

// NewRegistry returns a registry with an unavailable sentinel for every
// extractable category. Hosts overwrite entries for the decoders they
// actually ship.
func NewRegistry() Registry {
	r := make(Registry, len(types.ExtractableCategories()))
	for _, cat := range types.ExtractableCategories() {
		r[cat] = Unavailable(string(cat))
	}
	return r
}

// Register wires a capability for a category, replacing any sentinel.
func (r Registry) Register(cat types.Category, fn CapabilityFunc) {
	if fn == nil {
		r[cat] = Unavailable(string(cat))
		return
	}
	r[cat] = fn
}

// Unavailable returns a sentinel capability that reports a
// dependency_missing error for the named category.
func Unavailable(name string) CapabilityFunc {
	return func(ctx context.Context, path string) (map[string]any, error) {
		return nil, fmt.Errorf("%s decoder: %w", name, types.ErrCapabilityUnavailable)
	}
}
