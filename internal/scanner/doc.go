// Package scanner discovers files under a root path and turns them into
// scan results, delegating metadata extraction to a shared extractor.
//
// A Scanner applies recursive/non-recursive, extension, hidden-file and
// size-range filters, and prunes a configurable set of directory names
// (VCS metadata, build artifacts, caches) before descending. Cancellation
// is cooperative: Stop is checked at every directory entry, so a stop
// request halts the walk promptly.
//
// Usage:
//
//	s := scanner.New(scanner.Config{Extractor: ext})
//	results, err := s.ScanDirectory(ctx, "/photos", scanner.Options{
//		Recursive:       true,
//		Extensions:      []string{".jpg", ".png"},
//		ExtractMetadata: true,
//	})
//	if err != nil {
//		return err
//	}
//	stats := scanner.FileStatistics(results)
//
// The Coordinator wraps a Scanner with an at-most-one-scan guarantee,
// progress ownership and optional persistence of completed scans.
package scanner
