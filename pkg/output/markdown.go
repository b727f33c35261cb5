package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/stats"
)

// MarkdownWriter writes a report listing Tunneling records as a table,
// followed by a stats footer. Normal records are counted but not listed.
type MarkdownWriter struct {
	file      *os.File
	writer    *bufio.Writer
	batch     []*record.Record
	batchSize int
	startTime time.Time
	count     int
	listed    int
	stats     *stats.FeatureStats
}

// NewMarkdownWriter creates a markdown report writer. Use "-" for stdout.
// batchSize controls how many Tunneling rows are buffered before writing.
func NewMarkdownWriter(filename string, startTime time.Time, batchSize int) (*MarkdownWriter, error) {
	var file *os.File
	if filename == "-" || filename == "" {
		file = os.Stdout
	} else {
		f, err := os.Create(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		file = f
	}

	mw := newMarkdownWriter(file, startTime, batchSize)
	mw.file = file
	if err := mw.writeHeader(); err != nil {
		mw.Close()
		return nil, err
	}
	return mw, nil
}

// NewMarkdownWriterFromWriter creates a markdown writer over an existing io.Writer
func NewMarkdownWriterFromWriter(w io.Writer, startTime time.Time) (*MarkdownWriter, error) {
	mw := newMarkdownWriter(w, startTime, 0)
	if err := mw.writeHeader(); err != nil {
		return nil, err
	}
	return mw, nil
}

func newMarkdownWriter(w io.Writer, startTime time.Time, batchSize int) *MarkdownWriter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &MarkdownWriter{
		writer:    bufio.NewWriterSize(w, 64*1024),
		batch:     make([]*record.Record, 0, batchSize),
		batchSize: batchSize,
		startTime: startTime,
	}
}

// SetStats attaches the snapshot rendered in the footer on Close
func (mw *MarkdownWriter) SetStats(s stats.FeatureStats) {
	mw.stats = &s
}

// Write buffers Tunneling records and flushes the table in batches
func (mw *MarkdownWriter) Write(r *record.Record) error {
	mw.count++
	if !r.IsTunneling() {
		return nil
	}
	mw.batch = append(mw.batch, r)
	if len(mw.batch) >= mw.batchSize {
		return mw.flushBatch()
	}
	return nil
}

// Count returns the number of records written, listed or not
func (mw *MarkdownWriter) Count() int {
	return mw.count
}

// Flush writes buffered rows
func (mw *MarkdownWriter) Flush() error {
	return mw.flushBatch()
}

// Close writes remaining rows and the footer, then closes the file
func (mw *MarkdownWriter) Close() error {
	if err := mw.flushBatch(); err != nil {
		return err
	}
	if err := mw.writeFooter(); err != nil {
		return err
	}
	if err := mw.writer.Flush(); err != nil {
		return err
	}
	if mw.file != nil && mw.file != os.Stdout {
		return mw.file.Close()
	}
	return nil
}

func (mw *MarkdownWriter) writeHeader() error {
	_, err := fmt.Fprintf(mw.writer, `# DNS Tunneling Report

**Generated:** %s

| Time | Source IP | Query | Type | Rcode | Score | Confidence | Indicators |
|---|---|---|---|---|---|---|---|
`, mw.startTime.Format(time.RFC3339))
	return err
}

func (mw *MarkdownWriter) flushBatch() error {
	if len(mw.batch) == 0 {
		return nil
	}
	for _, r := range mw.batch {
		_, err := fmt.Fprintf(mw.writer, "| %s | %s | `%s` | %s | %s | %d | %.2f | %s |\n",
			r.Timestamp.UTC().Format(time.RFC3339),
			r.SourceIP,
			escapeCell(r.Query),
			r.Type,
			r.ResponseCode,
			r.ThreatScore,
			r.Confidence,
			escapeCell(strings.Join(r.Indicators, ", ")),
		)
		if err != nil {
			return err
		}
	}
	mw.listed += len(mw.batch)
	// Reuse backing array
	mw.batch = mw.batch[:0]
	return mw.writer.Flush()
}

func (mw *MarkdownWriter) writeFooter() error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n**Records:** %d, **Tunneling:** %d\n", mw.count, mw.listed)

	if s := mw.stats; s != nil {
		b.WriteString("\n## Statistics\n\n")
		b.WriteString("| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Total queries | %d |\n", s.TotalQueries)
		fmt.Fprintf(&b, "| Tunneling | %d |\n", s.TunnelingCount)
		fmt.Fprintf(&b, "| Avg entropy | %.3f |\n", s.AvgEntropy)
		fmt.Fprintf(&b, "| Avg length | %.1f |\n", s.AvgLength)
		fmt.Fprintf(&b, "| NXDOMAIN ratio | %.3f |\n", s.NXDomainRatio)
		fmt.Fprintf(&b, "| Avg threat score | %.1f |\n", s.AvgThreatScore)
		fmt.Fprintf(&b, "| Unique subdomains | %d |\n", s.UniqueSubdomains)
		fmt.Fprintf(&b, "| Unique base domains | %d |\n", s.UniqueBaseDomains)
	}

	fmt.Fprintf(&b, "\n**Duration:** %s\n", time.Since(mw.startTime).Round(time.Millisecond))
	_, err := mw.writer.WriteString(b.String())
	return err
}

// escapeCell keeps pipes from breaking the table
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
