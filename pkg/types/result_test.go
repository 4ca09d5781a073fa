package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanResultFailed(t *testing.T) {
	ok := ScanResult{Path: "/x/a.jpg", Result: &ExtractionResult{Path: "/x/a.jpg"}}
	scanErr := ScanResult{Path: "/x/b.jpg", Err: NewExtractError(ErrFileAccess, "gone")}
	resultErr := ScanResult{
		Path:   "/x/c.jpg",
		Result: &ExtractionResult{Path: "/x/c.jpg", Err: NewExtractError(ErrIO, "read failed")},
	}

	assert.False(t, ok.Failed())
	assert.True(t, scanErr.Failed())
	assert.True(t, resultErr.Failed())

	// Failed must be callable on non-addressable values, like map indexes.
	byPath := map[string]ScanResult{ok.Path: ok, scanErr.Path: scanErr}
	assert.False(t, byPath["/x/a.jpg"].Failed())
	assert.True(t, byPath["/x/b.jpg"].Failed())
}
