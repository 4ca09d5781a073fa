// Package catalog persists completed scans so they can be listed,
// inspected and re-exported later.
//
// The catalog is a SQLite database with semver-gated migrations. Two
// drivers are supported: the pure Go modernc.org/sqlite (default) and
// mattn/go-sqlite3 behind the cgo_sqlite build tag. Extraction fields
// are stored as JSON per result row.
package catalog
