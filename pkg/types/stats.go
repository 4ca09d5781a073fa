package types

import "fmt"

// FileSizeInfo identifies the largest or smallest file seen in a scan.
type FileSizeInfo struct {
	Path      string
	SizeBytes int64
	SizeHuman string
}

// Statistics summarizes a set of scan results. Produced by a single-pass
// aggregation with no side effects.
type Statistics struct {
	TotalFiles      int
	SuccessfulScans int
	FailedScans     int
	TotalSizeBytes  int64
	TotalSizeHuman  string
	ByFileType      map[Category]int
	ByExtension     map[string]int
	LargestFile     *FileSizeInfo
	SmallestFile    *FileSizeInfo
}

// HumanSize formats a byte count the way the CLI and statistics report it.
func HumanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
