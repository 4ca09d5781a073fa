package extractor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"syscall"

	"github.com/metascan/metascan/pkg/types"
)

// ErrNoWorkerPool is returned by ExtractBatch when the extractor was
// constructed without a usable worker pool. Callers treat it as a
// catastrophic submission failure and fall back to sequential extraction.
var ErrNoWorkerPool = errors.New("extractor has no worker pool")

// Classify maps a raw error onto the extraction error taxonomy. Severity,
// recoverability and retry policy follow the kind's default policy.
func Classify(err error) *types.ExtractError {
	if err == nil {
		return nil
	}

	var xerr *types.ExtractError
	if errors.As(err, &xerr) {
		return xerr
	}

	switch {
	case errors.Is(err, os.ErrNotExist),
		errors.Is(err, os.ErrPermission),
		errors.Is(err, types.ErrNotRegularFile):
		return types.NewExtractError(types.ErrFileAccess, err.Error())

	case errors.Is(err, types.ErrCapabilityUnavailable):
		return types.NewExtractError(types.ErrDependencyMissing, err.Error())

	case errors.Is(err, types.ErrCorrupted):
		return types.NewExtractError(types.ErrCorruptedFile, err.Error())

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return types.NewExtractError(types.ErrProcessingFailed, err.Error())

	case isOutOfMemory(err):
		return types.NewExtractError(types.ErrMemory, err.Error())

	case isTransientIO(err):
		return types.NewExtractError(types.ErrIO, err.Error())

	default:
		return types.NewExtractError(types.ErrUnknown, err.Error())
	}
}

func isOutOfMemory(err error) bool {
	if errors.Is(err, syscall.ENOMEM) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "out of memory") || strings.Contains(msg, "cannot allocate memory")
}

func isTransientIO(err error) bool {
	for _, errno := range []syscall.Errno{syscall.EIO, syscall.EAGAIN, syscall.EBUSY, syscall.EINTR} {
		if errors.Is(err, errno) {
			return true
		}
	}
	// Remaining path errors (interrupted reads, stale handles) are worth
	// a retry; missing/permission cases were matched above.
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}
