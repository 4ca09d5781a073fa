package scanner

import (
	"github.com/metascan/metascan/pkg/types"
)

// FileStatistics aggregates scan results into summary statistics. It is a
// pure single-pass computation with no side effects.
func FileStatistics(results []types.ScanResult) types.Statistics {
	stats := types.Statistics{
		TotalFiles:  len(results),
		ByFileType:  make(map[types.Category]int),
		ByExtension: make(map[string]int),
	}

	for i := range results {
		r := &results[i]
		if r.Failed() {
			stats.FailedScans++
			continue
		}
		stats.SuccessfulScans++

		res := r.Result
		size := fieldInt64(res.Fields, "size")
		stats.TotalSizeBytes += size

		if stats.LargestFile == nil || size > stats.LargestFile.SizeBytes {
			stats.LargestFile = &types.FileSizeInfo{
				Path:      r.Path,
				SizeBytes: size,
				SizeHuman: fieldString(res.Fields, "size_human"),
			}
		}
		if stats.SmallestFile == nil || size < stats.SmallestFile.SizeBytes {
			stats.SmallestFile = &types.FileSizeInfo{
				Path:      r.Path,
				SizeBytes: size,
				SizeHuman: fieldString(res.Fields, "size_human"),
			}
		}

		stats.ByFileType[res.Category]++
		ext := fieldString(res.Fields, "extension")
		if ext == "" {
			ext = "none"
		}
		stats.ByExtension[ext]++
	}

	stats.TotalSizeHuman = types.HumanSize(stats.TotalSizeBytes)
	return stats
}

// fieldInt64 reads a numeric field regardless of how it was produced
// (extraction stores int64, decoded JSON stores float64).
func fieldInt64(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}
