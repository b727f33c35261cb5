// Package output writes normalized records as JSONL, Parquet or Markdown.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Supported output formats
const (
	FormatJSONL    = "jsonl"
	FormatParquet  = "parquet"
	FormatMarkdown = "markdown"
)

// RecordWriter is implemented by every output format
type RecordWriter interface {
	Write(r *record.Record) error
	Flush() error
	Close() error
	Count() int
}

// New creates a writer for format. Use "-" for stdout (not valid for parquet).
func New(format, filename string) (RecordWriter, error) {
	switch strings.ToLower(format) {
	case FormatJSONL, "json", "":
		return NewJSONLWriter(filename)
	case FormatParquet:
		return NewParquetWriter(filename)
	case FormatMarkdown, "md":
		return NewMarkdownWriter(filename, time.Now(), 0)
	default:
		return nil, fmt.Errorf("unknown output format %q (valid: jsonl, parquet, markdown)", format)
	}
}
