package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/metascan/metascan/internal/scanner"
	"github.com/metascan/metascan/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeScanInProgress = -32001 // Another scan is already running
	ErrorCodeScanNotFound   = -32002 // Requested scan does not exist
)

// handleScanDirectory handles the scan_directory tool invocation
func (s *Server) handleScanDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validateDir(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	opts := scanner.Options{
		Recursive:       getBoolDefault(args, "recursive", true),
		IncludeHidden:   getBoolDefault(args, "include_hidden", false),
		ExtractMetadata: getBoolDefault(args, "extract_metadata", true),
		Extensions:      getStringSlice(args, "extensions"),
		MinSize:         int64(getIntDefault(args, "min_size", 0)),
		MaxSize:         int64(getIntDefault(args, "max_size", 0)),
	}

	start := time.Now()
	report, err := s.coordinator.Run(ctx, path, opts, nil)
	if errors.Is(err, scanner.ErrScanInProgress) {
		return nil, newMCPError(ErrorCodeScanInProgress, "a scan is already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"scan_id":     report.ScanID,
		"duration_ms": time.Since(start).Milliseconds(),
		"statistics":  statisticsMap(report.Statistics),
	}
	if sample := failureSample(report.Results, 5); len(sample) > 0 {
		response["failures"] = sample
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleExtractFile handles the extract_file tool invocation
func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if !filepath.IsAbs(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}

	// A failed extraction is still a result: error details ride in the
	// payload, not as a protocol error.
	res := s.extractor.Extract(ctx, path)

	response := map[string]interface{}{
		"path":       res.Path,
		"category":   string(res.Category),
		"fields":     res.Fields,
		"from_cache": res.FromCache,
		"attempts":   res.Attempts,
	}
	if res.RecoveryMethod != "" {
		response["recovery_method"] = res.RecoveryMethod
	}
	if res.Err != nil {
		response["error"] = errorMap(res.Err)
	}
	if len(res.CategoryErrors) > 0 {
		catErrs := map[string]interface{}{}
		for cat, cerr := range res.CategoryErrors {
			catErrs[string(cat)] = errorMap(cerr)
		}
		response["category_errors"] = catErrs
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListScans handles the list_scans tool invocation
func (s *Server) handleListScans(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	scans, err := s.catalog.ListScans(ctx, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list scans", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries := make([]map[string]interface{}, 0, len(scans))
	for _, scan := range scans {
		entry := map[string]interface{}{
			"scan_id":          scan.ID,
			"root_path":        scan.RootPath,
			"recursive":        scan.Recursive,
			"started_at":       scan.StartedAt.Format(time.RFC3339),
			"total_files":      scan.TotalFiles,
			"successful_scans": scan.SuccessfulScans,
			"failed_scans":     scan.FailedScans,
			"total_size_bytes": scan.TotalSizeBytes,
		}
		if !scan.FinishedAt.IsZero() {
			entry["finished_at"] = scan.FinishedAt.Format(time.RFC3339)
		}
		entries = append(entries, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"scans": entries,
		"count": len(entries),
	})), nil
}

// handleCacheStats handles the cache_stats tool invocation
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.extractor.CacheStats()
	response := map[string]interface{}{
		"entries":      stats.Entries,
		"memory_bytes": stats.MemoryBytes,
		"max_entries":  stats.MaxEntries,
		"max_bytes":    stats.MaxBytes,
		"ttl_seconds":  int(stats.TTL.Seconds()),
		"hits":         stats.Hits,
		"misses":       stats.Misses,
		"evictions":    stats.Evictions,
		"expirations":  stats.Expirations,
	}
	if sample := s.monitor.Sample(); !sample.Zero() {
		response["memory"] = map[string]interface{}{
			"used_percent":    sample.UsedPercent,
			"available_bytes": sample.AvailableBytes,
			"total_bytes":     sample.TotalBytes,
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before := s.extractor.CacheStats().Entries
	s.extractor.ClearCache()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
		"entries": before,
	})), nil
}

// Helper functions

func statisticsMap(stats types.Statistics) map[string]interface{} {
	byType := map[string]int{}
	for cat, n := range stats.ByFileType {
		byType[string(cat)] = n
	}
	m := map[string]interface{}{
		"total_files":      stats.TotalFiles,
		"successful_scans": stats.SuccessfulScans,
		"failed_scans":     stats.FailedScans,
		"total_size_bytes": stats.TotalSizeBytes,
		"total_size_human": stats.TotalSizeHuman,
		"by_file_type":     byType,
		"by_extension":     stats.ByExtension,
	}
	if stats.LargestFile != nil {
		m["largest_file"] = map[string]interface{}{
			"path": stats.LargestFile.Path, "size": stats.LargestFile.SizeBytes,
		}
	}
	if stats.SmallestFile != nil {
		m["smallest_file"] = map[string]interface{}{
			"path": stats.SmallestFile.Path, "size": stats.SmallestFile.SizeBytes,
		}
	}
	return m
}

func errorMap(xerr *types.ExtractError) map[string]interface{} {
	return map[string]interface{}{
		"kind":     string(xerr.Kind),
		"severity": string(xerr.Severity),
		"message":  xerr.Message,
	}
}

// failureSample returns up to max failed results for the response payload.
func failureSample(results []types.ScanResult, max int) []map[string]interface{} {
	var sample []map[string]interface{}
	for i := range results {
		if !results[i].Failed() {
			continue
		}
		entry := map[string]interface{}{"path": results[i].Path}
		if results[i].Err != nil {
			entry["error"] = errorMap(results[i].Err)
		}
		sample = append(sample, entry)
		if len(sample) >= max {
			break
		}
	}
	return sample
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateDir checks that a path is an absolute, readable directory
func validateDir(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string-array parameter
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
