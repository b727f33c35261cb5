package pipeline

import (
	"context"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Config contains pipeline configuration
type Config struct {
	Workers   int  // Number of concurrent normalization workers (0 or negative = auto: GOMAXPROCS)
	RateLimit int  // Max records per second (0 or negative = no limit, uses rate.Inf)
	Quiet     bool // Suppress per-detection logging
}

// RecordEnricher augments a normalized record in place before it is handed on
type RecordEnricher interface {
	EnrichRecord(ctx context.Context, r *record.Record) error
}

// Handler receives each record produced by the pipeline. Calls are serialized.
type Handler func(*record.Record) error
