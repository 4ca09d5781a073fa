package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// scanDirectoryTool returns the tool definition for scan_directory
func scanDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "scan_directory",
		Description: "Scan a directory tree, extract file metadata and report statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the directory to scan",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, descend into subdirectories",
					"default":     true,
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "Restrict the scan to these file extensions (e.g. ['.jpg', '.mp3'])",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"include_hidden": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, include hidden files",
					"default":     false,
				},
				"extract_metadata": map[string]interface{}{
					"type":        "boolean",
					"description": "If false, report stat-derived fields only (faster, no cache use)",
					"default":     true,
				},
				"min_size": map[string]interface{}{
					"type":        "integer",
					"description": "Minimum file size in bytes",
					"minimum":     0,
				},
				"max_size": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum file size in bytes",
					"minimum":     0,
				},
			},
			Required: []string{"path"},
		},
	}
}

// extractFileTool returns the tool definition for extract_file
func extractFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "extract_file",
		Description: "Extract metadata for a single file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the file",
				},
			},
			Required: []string{"path"},
		},
	}
}

// listScansTool returns the tool definition for list_scans
func listScansTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_scans",
		Description: "List recorded scans, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of scans to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// cacheStatsTool returns the tool definition for cache_stats
func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report result-cache size, budgets and hit/miss counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_cache",
		Description: "Remove all entries from the result cache",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
