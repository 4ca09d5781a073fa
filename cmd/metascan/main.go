package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"go.uber.org/zap"

	"github.com/metascan/metascan/internal/cache"
	"github.com/metascan/metascan/internal/catalog"
	"github.com/metascan/metascan/internal/extractor"
	"github.com/metascan/metascan/internal/memory"
	"github.com/metascan/metascan/internal/scanner"
	"github.com/metascan/metascan/pkg/types"
)

var version = "dev"

func main() {
	fs := ff.NewFlagSet("metascan")
	var (
		noRecursive   = fs.BoolLong("no-recursive", "Do not descend into subdirectories")
		extensions    = fs.StringLong("ext", "", "Comma-separated list of extensions to include (e.g. .jpg,.mp3)")
		includeHidden = fs.BoolLong("include-hidden", "Include hidden files")
		minSize       = fs.IntLong("min-size", 0, "Minimum file size in bytes")
		maxSize       = fs.IntLong("max-size", 0, "Maximum file size in bytes")
		workers       = fs.IntLong("workers", 4, "Worker pool size (capped at 4)")
		timeoutSec    = fs.IntLong("timeout", 30, "Per-file extraction timeout in seconds")
		format        = fs.StringLong("format", "json", "Output format: json or csv")
		dbPath        = fs.StringLong("db", "", "Catalog database path; empty disables scan persistence")
		noMetadata    = fs.BoolLong("no-metadata", "Skip metadata extraction, report stat-derived fields only")
		verbose       = fs.BoolLong("verbose", "Log progress and diagnostics to stderr")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("METASCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	args := fs.GetArgs()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: metascan [flags] <path>\n\n%s\n", ffhelp.Flags(fs))
		os.Exit(1)
	}
	root := args[0]

	if *format != "json" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "error: --format must be json or csv\n")
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	var cat catalog.Catalog
	if *dbPath != "" {
		c, err := catalog.NewSQLiteCatalog(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: open catalog: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = c.Close() }()
		cat = c
	}

	resultCache := cache.New(cache.Config{Logger: logger})
	monitor := memory.NewMonitor(memory.Config{Cache: resultCache, Logger: logger})
	ext := extractor.New(extractor.Config{
		Cache:          resultCache,
		Monitor:        monitor,
		MaxWorkers:     *workers,
		PerFileTimeout: time.Duration(*timeoutSec) * time.Second,
		Logger:         logger,
	})
	coord := scanner.NewCoordinator(scanner.CoordinatorConfig{
		Scanner: scanner.New(scanner.Config{Extractor: ext, Logger: logger}),
		Monitor: monitor,
		Catalog: cat,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "stopping scan...")
		coord.Stop()
	}()

	opts := scanner.Options{
		Recursive:       !*noRecursive,
		Extensions:      splitExtensions(*extensions),
		IncludeHidden:   *includeHidden,
		MinSize:         int64(*minSize),
		MaxSize:         int64(*maxSize),
		ExtractMetadata: !*noMetadata,
	}

	var progress extractor.ProgressFunc
	if *verbose {
		progress = func(completed, total int) {
			fmt.Fprintf(os.Stderr, "\r%d/%d files", completed, total)
			if completed == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	report, err := coord.Run(ctx, root, opts, progress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "csv":
		err = writeCSV(os.Stdout, report)
	default:
		err = writeJSON(os.Stdout, report)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if report.Statistics.FailedScans > 0 {
		os.Exit(2)
	}
}

func splitExtensions(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// jsonReport is the serialized scan report.
type jsonReport struct {
	ScanID     int64          `json:"scan_id,omitempty"`
	Statistics jsonStatistics `json:"statistics"`
	Results    []jsonResult   `json:"results"`
}

type jsonStatistics struct {
	TotalFiles      int            `json:"total_files"`
	SuccessfulScans int            `json:"successful_scans"`
	FailedScans     int            `json:"failed_scans"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	TotalSizeHuman  string         `json:"total_size_human"`
	ByFileType      map[string]int `json:"by_file_type"`
	ByExtension     map[string]int `json:"by_extension"`
}

type jsonResult struct {
	Path      string         `json:"path"`
	Category  string         `json:"category"`
	Fields    map[string]any `json:"fields,omitempty"`
	FromCache bool           `json:"from_cache,omitempty"`
	Error     *jsonError     `json:"error,omitempty"`
}

type jsonError struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func writeJSON(w *os.File, report *scanner.Report) error {
	out := jsonReport{
		ScanID: report.ScanID,
		Statistics: jsonStatistics{
			TotalFiles:      report.Statistics.TotalFiles,
			SuccessfulScans: report.Statistics.SuccessfulScans,
			FailedScans:     report.Statistics.FailedScans,
			TotalSizeBytes:  report.Statistics.TotalSizeBytes,
			TotalSizeHuman:  report.Statistics.TotalSizeHuman,
			ByFileType:      categoryCounts(report.Statistics.ByFileType),
			ByExtension:     report.Statistics.ByExtension,
		},
		Results: make([]jsonResult, 0, len(report.Results)),
	}
	for i := range report.Results {
		r := &report.Results[i]
		jr := jsonResult{Path: r.Path, Category: string(types.CategoryForPath(r.Path))}
		if r.Result != nil {
			jr.Category = string(r.Result.Category)
			jr.Fields = r.Result.Fields
			jr.FromCache = r.Result.FromCache
		}
		if r.Err != nil {
			jr.Error = &jsonError{
				Kind:     string(r.Err.Kind),
				Severity: string(r.Err.Severity),
				Message:  r.Err.Message,
			}
		}
		out.Results = append(out.Results, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeCSV(w *os.File, report *scanner.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"path", "category", "size", "extension", "from_cache", "error_kind", "error_message"}); err != nil {
		return err
	}
	for i := range report.Results {
		r := &report.Results[i]
		row := []string{r.Path, "", "", "", "false", "", ""}
		if r.Result != nil {
			row[1] = string(r.Result.Category)
			row[2] = fieldAsString(r.Result.Fields, "size")
			row[3] = fieldAsString(r.Result.Fields, "extension")
			row[4] = fmt.Sprintf("%t", r.Result.FromCache)
		}
		if r.Err != nil {
			row[5] = string(r.Err.Kind)
			row[6] = r.Err.Message
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fieldAsString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func categoryCounts(byType map[types.Category]int) map[string]int {
	out := make(map[string]int, len(byType))
	for cat, n := range byType {
		out[string(cat)] = n
	}
	return out
}
