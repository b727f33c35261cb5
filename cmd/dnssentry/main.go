package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/enrich"
	"github.com/velemoonkon/dnssentry/pkg/forensic"
	"github.com/velemoonkon/dnssentry/pkg/input"
	"github.com/velemoonkon/dnssentry/pkg/metrics"
	"github.com/velemoonkon/dnssentry/pkg/normalize"
	"github.com/velemoonkon/dnssentry/pkg/output"
	"github.com/velemoonkon/dnssentry/pkg/pipeline"
	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/reputation"
	"github.com/velemoonkon/dnssentry/pkg/stats"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Records sent to the forensic analysis service
const forensicSampleSize = 25

// CLI flags
var (
	// Configuration
	tablesFile string

	// Output
	outputFile   string
	outputFormat string

	// Mode
	streamMode bool
	windowSize int

	// Enrichment and analysis
	geoipDatabase string
	analyzeURL    string
	metricsAddr   string

	// Performance
	workers int
	rate    int

	// Logging
	quiet   bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dnssentry [flags] <file>...",
	Short: "DNS query log normalizer and tunneling detector",
	Long: `dnssentry - Normalize DNS query logs and flag DNS tunneling

Reads DNS query logs in any of these formats (auto-detected):
  • JSON array or object
  • CSV with or without a header row
  • JSON lines or free-text log lines (BIND, dnsmasq, ...)

Every query is scored for entropy, length, response code, query type,
source reputation and location, then labelled Normal or Tunneling.

Output formats:
  • JSONL (default) - streaming, pipe to jq
  • Parquet - columnar, query with DuckDB
  • Markdown - tunneling report with statistics`,

	Example: `  # Normalize a log file
  dnssentry queries.log

  # Gzip or zstd input is detected automatically
  dnssentry queries.json.gz -o records.jsonl

  # Follow a live feed from stdin
  tail -f /var/log/named/query.log | dnssentry --stream -

  # Geolocate sources with a MaxMind City database
  dnssentry queries.csv --geoip GeoLite2-City.mmdb

  # Parquet output for analytics
  dnssentry queries.log --format parquet -o records.parquet
  # Then query: duckdb -c "SELECT query, threat_score FROM 'records.parquet' WHERE label = 'Tunneling'"

  # Markdown tunneling report
  dnssentry queries.log --format markdown -o report.md

  # Custom reputation tables and high-risk regions
  dnssentry queries.log --config tables.yaml`,

	Args:          cobra.MinimumNArgs(1),
	RunE:          runAnalyze,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("dnssentry %s (commit: %s, built: %s)\n", version, commit, date))
	rootCmd.Version = version

	f := rootCmd.Flags()

	// Configuration
	f.StringVar(&tablesFile, "config", "", "Reputation and scoring tables file (yaml, json, toml)")

	// Output
	f.StringVarP(&outputFile, "output", "o", "-", "Output file (- for stdout)")
	f.StringVar(&outputFormat, "format", "jsonl", "Output format: jsonl, parquet, markdown")

	// Mode
	f.BoolVar(&streamMode, "stream", false, "Process input line by line through the worker pipeline")
	f.IntVar(&windowSize, "window", config.Pipeline.DefaultWindowSize, "Records kept for stream statistics")

	// Enrichment and analysis
	f.StringVar(&geoipDatabase, "geoip", "", "MaxMind City database for source geolocation")
	f.StringVar(&analyzeURL, "analyze-url", "", "Forensic analysis endpoint for a sample of top-threat records")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	// Performance
	f.IntVarP(&workers, "workers", "w", config.Pipeline.DefaultWorkers, "Stream workers (0 = one per CPU)")
	f.IntVarP(&rate, "rate", "r", config.Pipeline.DefaultRateLimit, "Max records/second in stream mode (0 = unlimited)")

	// Logging
	f.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.SetUsageTemplate(usageTemplate)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	initLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("stopping...")
		cancel()
	}()

	cfg, err := ResolveRunConfig(RunFlags{
		OutputFile:    outputFile,
		OutputFormat:  outputFormat,
		Stream:        streamMode,
		WindowSize:    windowSize,
		GeoIPDatabase: geoipDatabase,
		AnalyzeURL:    analyzeURL,
		Workers:       workers,
		Rate:          rate,
	})
	if err != nil {
		return err
	}

	tables, err := config.LoadTables(tablesFile)
	if err != nil {
		return err
	}

	scorer := tunnel.NewScorer(tables.HighRiskRegions)
	normalizer := normalize.New(
		reputation.NewChecker(tables.Reputation),
		tunnel.NewClassifier(nil),
		scorer,
	)

	var enricher *enrich.Enricher
	if cfg.GeoIPDatabase != "" {
		locator, err := enrich.OpenGeoIP(cfg.GeoIPDatabase)
		if err != nil {
			return err
		}
		defer locator.Close()
		enricher = enrich.NewEnricher(locator, scorer)
	}

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr)
		defer stop()
	}

	writer, err := output.New(cfg.Format, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}

	startTime := time.Now()

	var (
		records []*record.Record
		runErr  error
	)
	if cfg.Stream {
		records, runErr = runStream(ctx, cfg, normalizer, enricher, writer, args)
	} else {
		records, runErr = runBatch(ctx, normalizer, enricher, writer, args)
	}

	snapshot := stats.Aggregate(records)
	if sw, ok := writer.(interface{ SetStats(stats.FeatureStats) }); ok {
		sw.SetStats(snapshot)
	}

	// Close writer
	if closeErr := writer.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("analysis failed: %w", runErr)
	}

	slog.Info("analysis completed",
		"records", writer.Count(),
		"duration", time.Since(startTime).Round(time.Millisecond),
		slog.Group("stats",
			slog.Int("tunneling", snapshot.TunnelingCount),
			slog.Float64("avg_entropy", snapshot.AvgEntropy),
			slog.Float64("avg_length", snapshot.AvgLength),
			slog.Float64("nxdomain_ratio", snapshot.NXDomainRatio),
			slog.Float64("avg_threat_score", snapshot.AvgThreatScore),
			slog.Int("unique_subdomains", snapshot.UniqueSubdomains),
			slog.Int("unique_base_domains", snapshot.UniqueBaseDomains),
		),
	)

	if cfg.AnalyzeURL != "" && ctx.Err() == nil {
		runForensics(ctx, cfg.AnalyzeURL, records)
	}

	return nil
}

// runBatch parses each file as a whole document
func runBatch(ctx context.Context, n *normalize.Normalizer, enricher *enrich.Enricher, w output.RecordWriter, files []string) ([]*record.Record, error) {
	parser := input.NewParser(n)

	var all []*record.Record
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		content, err := input.ReadFile(file)
		if err != nil {
			return all, err
		}

		records, err := parser.Parse(content)
		if errors.Is(err, input.ErrNoRecords) {
			slog.Warn("no records found", "file", file)
			continue
		}
		if err != nil {
			return all, fmt.Errorf("%s: %w", file, err)
		}
		slog.Debug("parsed file", "file", file, "records", len(records))

		if enricher != nil {
			if err := enricher.Enrich(ctx, records); err != nil {
				return all, err
			}
		}

		for _, r := range records {
			if err := w.Write(r); err != nil {
				return all, err
			}
		}
		all = append(all, records...)
	}
	return all, nil
}

// runStream feeds each file line by line through the worker pipeline.
// Only the last cfg.WindowSize records are kept for statistics.
func runStream(ctx context.Context, cfg RunConfig, n *normalize.Normalizer, enricher *enrich.Enricher, w output.RecordWriter, files []string) ([]*record.Record, error) {
	var opts []pipeline.Option
	if enricher != nil {
		opts = append(opts, pipeline.WithEnricher(enricher))
	}
	p := pipeline.New(n, pipeline.Config{
		Workers:   cfg.Workers,
		RateLimit: cfg.Rate,
		Quiet:     quiet,
	}, opts...)

	window := stats.NewWindow(cfg.WindowSize)
	handler := func(r *record.Record) error {
		window.Add(r)
		return w.Write(r)
	}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		src, err := input.Open(file)
		if err != nil {
			return window.Records(), err
		}

		feed := input.NewLineFeed(src)
		count, streamErr := p.Stream(ctx, feed.All(), handler)
		src.Close()

		slog.Debug("stream finished", "file", file, "records", count, "skipped", feed.Skipped())
		if streamErr != nil {
			return window.Records(), streamErr
		}
		if err := feed.Err(); err != nil {
			return window.Records(), fmt.Errorf("%s: %w", file, err)
		}
	}
	return window.Records(), nil
}

// runForensics requests a narrative report. Failures are logged, never fatal.
func runForensics(ctx context.Context, url string, records []*record.Record) {
	report, err := forensic.Run(ctx, forensic.NewHTTPAnalyzer(url), records, forensicSampleSize)
	if err != nil {
		slog.Warn("forensic report unavailable", "error", err)
		return
	}
	slog.Info("forensic report",
		"threat_level", report.ThreatLevel,
		"indicators", report.Indicators,
		"events", len(report.Timeline),
		"narrative", report.Narrative,
		"remediation", report.Remediation,
	)
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown func
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func initLogger() {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func main() {
	config.Init()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usageTemplate = `Usage:
  {{.UseLine}}

Examples:
{{.Example}}

Configuration:
      --config string        Reputation and scoring tables file (yaml, json, toml)

Output:
  -o, --output string        Output file, - for stdout (default "-")
      --format string        Format: jsonl, parquet, markdown (default "jsonl")

Mode:
      --stream               Process input line by line through the worker pipeline
      --window int           Records kept for stream statistics (default 500)

Enrichment:
      --geoip string         MaxMind City database for source geolocation
      --analyze-url string   Forensic analysis endpoint
      --metrics-addr string  Serve Prometheus metrics (e.g. :9090)

Performance:
  -w, --workers int          Stream workers, 0 = one per CPU (default 0)
  -r, --rate int             Max records/second, 0 = unlimited (default 0)

Logging:
  -q, --quiet                Suppress progress output
  -v, --verbose              Verbose logging

Other:
  -h, --help                 Show help
      --version              Show version
`
