package extractor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metascan/metascan/pkg/types"
)

// ProgressFunc receives completion updates from worker/collector context.
// Implementations must be fast; panics are swallowed so a misbehaving sink
// can never take down a batch.
type ProgressFunc func(completed, total int)

type batchItem struct {
	path string
	res  *types.ExtractionResult
}

// ExtractBatch extracts metadata for all paths on the shared worker pool.
// Results are keyed by path, not ordered by submission. A per-file timeout
// yields a processing_failed result for that file only. Cancellation via
// ctx returns the results collected so far, not an error. The only error
// return is a catastrophic submission failure (no worker pool).
func (e *Extractor) ExtractBatch(ctx context.Context, paths []string, onProgress ProgressFunc) (map[string]*types.ExtractionResult, error) {
	if e.sem == nil || cap(e.sem) == 0 {
		return nil, ErrNoWorkerPool
	}

	total := len(paths)
	results := make(map[string]*types.ExtractionResult, total)
	if total == 0 {
		return results, nil
	}

	resCh := make(chan batchItem)
	var g errgroup.Group

	for _, path := range paths {
		// Cancellation is checked before submitting each file.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			e.extractWorker(ctx, path, resCh)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(resCh)
	}()

	// Sample memory roughly every 5% of the batch.
	checkEvery := total / 20
	if checkEvery < 1 {
		checkEvery = 1
	}

	completed := 0
	for {
		select {
		case item, ok := <-resCh:
			if !ok {
				return results, nil
			}
			results[item.path] = item.res
			completed++
			reportProgress(onProgress, completed, total)

			if completed%checkEvery == 0 {
				e.maybeReclaim()
			}

		case <-ctx.Done():
			// Stop waiting on outstanding work; running extractions
			// finish on their own timeout and are discarded.
			e.logger.Debug("batch cancelled",
				zap.Int("completed", completed), zap.Int("total", total))
			return results, nil
		}
	}
}

// extractWorker runs one file through the pool with a per-file timeout.
func (e *Extractor) extractWorker(ctx context.Context, path string, resCh chan<- batchItem) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		// Cancelled before the task started; no result for this path.
		return
	}
	defer func() { <-e.sem }()

	fctx, cancel := context.WithTimeout(ctx, e.perFileTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan *types.ExtractionResult, 1)
	go func() {
		done <- e.Extract(fctx, path)
	}()

	var res *types.ExtractionResult
	select {
	case res = <-done:
	case <-fctx.Done():
		if ctx.Err() != nil {
			return // batch cancelled, not a per-file timeout
		}
		res = e.failureResult(path,
			types.NewExtractError(types.ErrProcessingFailed, "extraction timed out"), 1)
		res.Elapsed = time.Since(start)
	}

	select {
	case resCh <- batchItem{path: path, res: res}:
	case <-ctx.Done():
	}
}

// maybeReclaim samples the monitor and reclaims under pressure, escalating
// to aggressive reclamation at the critical threshold.
func (e *Extractor) maybeReclaim() {
	if e.monitor == nil {
		return
	}
	if e.monitor.ShouldReclaim() {
		e.monitor.Reclaim(e.monitor.CriticalPressure())
	}
}

func reportProgress(onProgress ProgressFunc, completed, total int) {
	if onProgress == nil {
		return
	}
	defer func() {
		_ = recover() // a progress sink must never abort the batch
	}()
	onProgress(completed, total)
}

// PerFileTimeout returns the configured per-file timeout, used by callers
// sizing their own deadlines around batch collection.
func (e *Extractor) PerFileTimeout() time.Duration {
	return e.perFileTimeout
}
