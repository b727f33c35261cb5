package input

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/record"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Open opens a log source for reading. "-" or "" is stdin.
// Gzip and zstd content is detected by its magic bytes and decompressed.
func Open(filename string) (io.ReadCloser, error) {
	var src io.ReadCloser
	if filename == "-" || filename == "" {
		src = io.NopCloser(os.Stdin)
	} else {
		file, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		src = file
	}

	rc, err := Decompress(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	return rc, nil
}

// Decompress wraps src with a gzip or zstd decoder when its header matches.
// Closing the result closes src.
func Decompress(src io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(src)
	head, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, src}}, nil

	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		dec := zr.IOReadCloser()
		return &stackedCloser{Reader: dec, closers: []io.Closer{dec, src}}, nil

	default:
		return &stackedCloser{Reader: br, closers: []io.Closer{src}}, nil
	}
}

// ReadFile reads a whole log source into memory, decompressing if needed
func ReadFile(filename string) (string, error) {
	rc, err := Open(filename)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("error reading file: %w", err)
	}
	return string(data), nil
}

// LineFeed yields one field map per usable line of a stream
type LineFeed struct {
	scanner *bufio.Scanner
	lineNum int
	skipped int
	err     error
}

// NewLineFeed creates a line feed over r. Lines longer than
// DNSSENTRY_PARSER_MAX_LINE bytes stop the feed with an error.
func NewLineFeed(r io.Reader) *LineFeed {
	scanner := bufio.NewScanner(r)
	maxLine := config.Parser.MaxLineLength
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLine)), maxLine)
	return &LineFeed{scanner: scanner}
}

// All returns an iterator over the field maps of the stream.
// Empty lines, comments and lines with no query name are skipped.
func (f *LineFeed) All() iter.Seq[record.Fields] {
	return func(yield func(record.Fields) bool) {
		for f.scanner.Scan() {
			f.lineNum++
			line := strings.TrimSpace(f.scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields, ok := FieldsFromLine(line)
			if !ok {
				f.skipped++
				continue
			}
			if !yield(fields) {
				return
			}
		}
		if err := f.scanner.Err(); err != nil {
			f.err = fmt.Errorf("line %d: %w", f.lineNum+1, err)
		}
	}
}

// Lines is shorthand for NewLineFeed(r).All() when read errors and skip
// counts are not needed
func Lines(r io.Reader) iter.Seq[record.Fields] {
	return NewLineFeed(r).All()
}

// Err returns the first read error encountered by All
func (f *LineFeed) Err() error {
	return f.err
}

// Skipped returns how many non-comment lines produced no fields
func (f *LineFeed) Skipped() int {
	return f.skipped
}

// stackedCloser closes a decoder and its underlying source in order
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
