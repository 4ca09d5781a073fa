// Package mcp exposes the metadata-extraction pipeline as an MCP server
// over stdio.
//
// Five tools are registered:
//
//	scan_directory  - scan a directory tree and report statistics
//	extract_file    - extract metadata for a single file
//	list_scans      - list recorded scans from the catalog
//	cache_stats     - report result-cache state
//	clear_cache     - purge the result cache
//
// Tool handlers validate parameters, delegate to the scanner/extractor
// components, and return indented JSON. Protocol errors carry MCP error
// codes; extraction failures are reported inside the JSON payload because
// a failed file is data, not a protocol fault.
package mcp
