// Package forensic requests narrative reports on samples of suspicious records
// from an external analysis service.
package forensic

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// ErrAnalysisFailed wraps every failure of a forensic analysis
var ErrAnalysisFailed = errors.New("forensic analysis failed")

// ThreatLevel is the overall severity assigned by the analyst
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatMedium   ThreatLevel = "MEDIUM"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"
)

// ParseThreatLevel maps s onto a known level, case-insensitively
func ParseThreatLevel(s string) (ThreatLevel, error) {
	level := ThreatLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical:
		return level, nil
	}
	return "", fmt.Errorf("unknown threat level %q", s)
}

// Event is one dated entry of a report timeline
type Event struct {
	Time        time.Time `json:"time"`
	Description string    `json:"description"`
}

// Report is the structured summary returned for a sample
type Report struct {
	Narrative   string      `json:"narrative"`
	ThreatLevel ThreatLevel `json:"threatLevel"`
	Indicators  []string    `json:"indicators"`
	Timeline    []Event     `json:"timeline"`
	Remediation string      `json:"remediation"`
}

// Analyzer produces a report for a sample of records
type Analyzer interface {
	Analyze(ctx context.Context, sample []*record.Record) (*Report, error)
}

// Sample returns up to n records with the highest threat score. Ties keep
// their input order. The input slice is not modified.
func Sample(records []*record.Record, n int) []*record.Record {
	if n <= 0 || len(records) == 0 {
		return nil
	}
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *record.Record) int {
		return cmp.Compare(b.ThreatScore, a.ThreatScore)
	})
	return sorted[:min(n, len(sorted))]
}

// Run samples records and asks a for a report. Any failure, including an
// empty sample, is wrapped in ErrAnalysisFailed.
func Run(ctx context.Context, a Analyzer, records []*record.Record, n int) (*Report, error) {
	sample := Sample(records, n)
	if len(sample) == 0 {
		return nil, fmt.Errorf("%w: no records to analyze", ErrAnalysisFailed)
	}

	report, err := a.Analyze(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: empty report", ErrAnalysisFailed)
	}
	return report, nil
}
