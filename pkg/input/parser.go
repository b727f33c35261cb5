package input

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/velemoonkon/dnssentry/pkg/metrics"
	"github.com/velemoonkon/dnssentry/pkg/normalize"
	"github.com/velemoonkon/dnssentry/pkg/record"
)

// ErrNoRecords is returned when non-empty content yields no valid records
var ErrNoRecords = errors.New("no valid records found")

// Document is raw content prepared for the parsing strategies
type Document struct {
	// Content is the trimmed input
	Content string
	// Lines are the non-empty, non-comment lines of Content, trimmed
	Lines []string
}

// NewDocument trims content and splits it into candidate lines
func NewDocument(content string) *Document {
	content = strings.TrimSpace(content)
	return &Document{
		Content: content,
		Lines:   SplitLines(content),
	}
}

// SplitLines returns the non-empty lines of content that are not '#' comments
func SplitLines(content string) []string {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Strategy extracts field maps from a document in one input format
type Strategy interface {
	// Name returns the strategy identifier (document, csv, lines)
	Name() string

	// Extract returns the field maps found in doc. final reports that the
	// document belongs to this format, so later strategies must not run
	// even when no records result.
	Extract(doc *Document) (fields []record.Fields, final bool)
}

// DefaultStrategies returns the strategies in the order they are tried
func DefaultStrategies() []Strategy {
	return []Strategy{
		DocumentStrategy{},
		CSVStrategy{},
		LineStrategy{},
	}
}

// Parser turns raw log content into normalized records
type Parser struct {
	normalizer *normalize.Normalizer
	strategies []Strategy
}

// NewParser creates a parser. With no strategies the defaults are used.
func NewParser(n *normalize.Normalizer, strategies ...Strategy) *Parser {
	if n == nil {
		n = normalize.New(nil, nil, nil)
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Parser{
		normalizer: n,
		strategies: strategies,
	}
}

// Parse detects the format of content and returns its normalized records.
// Empty or whitespace-only content yields an empty result without error;
// anything else that yields no records returns ErrNoRecords.
func (p *Parser) Parse(content string) ([]*record.Record, error) {
	doc := NewDocument(content)
	if doc.Content == "" {
		return []*record.Record{}, nil
	}

	for _, strategy := range p.strategies {
		fields, final := strategy.Extract(doc)
		records := p.normalizer.NormalizeAll(fields)

		if final || len(records) > 0 {
			metrics.ObserveParse(strategy.Name(), len(fields)-len(records))
			for _, r := range records {
				metrics.ObserveRecord(string(r.Label), r.ThreatScore)
			}
			slog.Debug("parsed input",
				"strategy", strategy.Name(),
				"candidates", len(fields),
				"records", len(records),
			)
			if len(records) == 0 {
				return nil, ErrNoRecords
			}
			return records, nil
		}
	}

	return nil, ErrNoRecords
}
