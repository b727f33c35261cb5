package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// RecordRow is a flattened representation of Record for Parquet storage.
// Metadata is kept as a JSON object string so arbitrary input fields survive.
type RecordRow struct {
	ID           string  `parquet:"id,zstd"`
	TimestampMs  int64   `parquet:"timestamp_ms"`
	SourceIP     string  `parquet:"source_ip,zstd,dict"`
	Query        string  `parquet:"query,zstd"`
	Type         string  `parquet:"type,zstd,dict"`
	ResponseCode string  `parquet:"response_code,zstd,dict"`
	Length       int32   `parquet:"length"`
	Entropy      float64 `parquet:"entropy"`
	Reputation   string  `parquet:"reputation,zstd,dict"`
	Label        string  `parquet:"label,zstd,dict"`
	Confidence   float64 `parquet:"confidence"`
	ThreatScore  int32   `parquet:"threat_score"`

	// Enrichment
	Location string   `parquet:"location,zstd,dict"`
	Lat      *float64 `parquet:"lat"`
	Lng      *float64 `parquet:"lng"`

	// Indicators as semicolon-separated for simplicity
	Indicators string `parquet:"indicators,zstd"`
	Metadata   string `parquet:"metadata,zstd"`
}

// ParquetWriter writes records to a Parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[RecordRow]
	count  int
}

// NewParquetWriter creates a Parquet writer with zstd compression
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	if filename == "" || filename == "-" {
		return nil, fmt.Errorf("parquet output requires a file name")
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[RecordRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("dnssentry", "1.0.0", "go"),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write converts a Record to a flat RecordRow and writes it
func (w *ParquetWriter) Write(r *record.Record) error {
	row, err := recordToRow(r)
	if err != nil {
		return err
	}

	if _, err := w.writer.Write([]RecordRow{row}); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}

	w.count++
	return nil
}

// Flush forces buffered data to be written
func (w *ParquetWriter) Flush() error {
	return w.writer.Flush()
}

// Close finalizes and closes the Parquet file
func (w *ParquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written
func (w *ParquetWriter) Count() int {
	return w.count
}

// recordToRow flattens a Record into a RecordRow
func recordToRow(r *record.Record) (RecordRow, error) {
	row := RecordRow{
		ID:           r.ID,
		TimestampMs:  r.Timestamp.UnixMilli(),
		SourceIP:     r.SourceIP,
		Query:        r.Query,
		Type:         r.Type,
		ResponseCode: r.ResponseCode,
		Length:       int32(r.Length),
		Entropy:      r.Entropy,
		Reputation:   string(r.Reputation),
		Label:        string(r.Label),
		Confidence:   r.Confidence,
		ThreatScore:  int32(r.ThreatScore),
		Lat:          r.Lat,
		Lng:          r.Lng,
		Indicators:   strings.Join(r.Indicators, ";"),
	}

	if r.HasLocation() {
		row.Location = r.Location
	}

	if len(r.Metadata) > 0 {
		data, err := json.Marshal(r.Metadata)
		if err != nil {
			return RecordRow{}, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		row.Metadata = string(data)
	}

	return row, nil
}
