package main

import (
	"fmt"
	"strings"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/output"
)

// RunFlags represents the CLI flags for one run
type RunFlags struct {
	// Input/output
	OutputFile   string
	OutputFormat string

	// Mode
	Stream     bool
	WindowSize int

	// Enrichment and analysis
	GeoIPDatabase string
	AnalyzeURL    string

	// Performance
	Workers int
	Rate    int
}

// RunConfig represents the resolved run configuration
type RunConfig struct {
	OutputFile string
	Format     string

	Stream     bool
	WindowSize int

	GeoIPDatabase string
	AnalyzeURL    string

	Workers int
	Rate    int
}

// ResolveRunConfig validates CLI flags and fills in defaults from the
// DNSSENTRY_* environment
func ResolveRunConfig(flags RunFlags) (RunConfig, error) {
	format := strings.ToLower(strings.TrimSpace(flags.OutputFormat))
	switch format {
	case "", "json":
		format = output.FormatJSONL
	case "md":
		format = output.FormatMarkdown
	case output.FormatJSONL, output.FormatParquet, output.FormatMarkdown:
	default:
		return RunConfig{}, fmt.Errorf("unknown output format %q (valid: jsonl, parquet, markdown)", flags.OutputFormat)
	}

	outputFile := flags.OutputFile
	if outputFile == "" {
		outputFile = "-"
	}
	if format == output.FormatParquet && outputFile == "-" {
		return RunConfig{}, fmt.Errorf("parquet cannot write to stdout, use -o file.parquet")
	}

	windowSize := flags.WindowSize
	if windowSize <= 0 {
		windowSize = config.Pipeline.DefaultWindowSize
	}

	workers := flags.Workers
	if workers < 0 {
		workers = config.Pipeline.DefaultWorkers
	}
	rate := flags.Rate
	if rate < 0 {
		rate = config.Pipeline.DefaultRateLimit
	}

	// Flag wins over DNSSENTRY_GEOIP_DATABASE
	geoip := flags.GeoIPDatabase
	if geoip == "" {
		geoip = config.Enrich.GeoIPDatabase
	}

	return RunConfig{
		OutputFile:    outputFile,
		Format:        format,
		Stream:        flags.Stream,
		WindowSize:    windowSize,
		GeoIPDatabase: geoip,
		AnalyzeURL:    strings.TrimSpace(flags.AnalyzeURL),
		Workers:       workers,
		Rate:          rate,
	}, nil
}
