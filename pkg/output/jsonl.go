package output

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Buffered records between flushes when writing to a file
const fileFlushInterval = 100

// JSONLWriter writes one record per line, ready for jq or a log shipper
type JSONLWriter struct {
	closer     io.Closer
	buf        *bufio.Writer
	enc        *json.Encoder
	flushEvery int
	count      int
}

// NewJSONLWriter creates a JSONL writer to filename, "-" or "" for stdout.
// Stdout is flushed after every record so piped consumers see lines as
// they are produced.
func NewJSONLWriter(filename string) (*JSONLWriter, error) {
	if filename == "-" || filename == "" {
		return newJSONLWriter(os.Stdout, nil, 1), nil
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return newJSONLWriter(file, file, fileFlushInterval), nil
}

// NewJSONLWriterFromWriter wraps w. Closing the writer flushes but does not close w.
func NewJSONLWriterFromWriter(w io.Writer) *JSONLWriter {
	return newJSONLWriter(w, nil, fileFlushInterval)
}

func newJSONLWriter(w io.Writer, closer io.Closer, flushEvery int) *JSONLWriter {
	buf := bufio.NewWriterSize(w, 64*1024)
	enc := json.NewEncoder(buf)
	// Query names and raw lines are data, not HTML
	enc.SetEscapeHTML(false)
	return &JSONLWriter{
		closer:     closer,
		buf:        buf,
		enc:        enc,
		flushEvery: max(1, flushEvery),
	}
}

// Write encodes r as one line
func (w *JSONLWriter) Write(r *record.Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode record %s: %w", r.ID, err)
	}
	w.count++
	if w.count%w.flushEvery == 0 {
		return w.buf.Flush()
	}
	return nil
}

// Flush writes buffered lines
func (w *JSONLWriter) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the underlying file, if any
func (w *JSONLWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Count returns the number of records written
func (w *JSONLWriter) Count() int {
	return w.count
}
