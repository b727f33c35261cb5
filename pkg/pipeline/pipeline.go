// Package pipeline normalizes a live feed of field maps concurrently.
package pipeline

import (
	"context"
	"iter"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/metrics"
	"github.com/velemoonkon/dnssentry/pkg/normalize"
	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Pipeline fans field maps out to normalization workers and collects records
type Pipeline struct {
	config     Config
	limiter    *rate.Limiter
	normalizer *normalize.Normalizer
	enricher   RecordEnricher
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithEnricher runs e on every record after normalization
func WithEnricher(e RecordEnricher) Option {
	return func(p *Pipeline) {
		p.enricher = e
	}
}

// New creates a pipeline around n
func New(n *normalize.Normalizer, cfg Config, opts ...Option) *Pipeline {
	// Workers=0 means "auto": normalization is CPU-bound
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0) // No rate limit
	}

	if n == nil {
		n = normalize.New(nil, nil, nil)
	}

	p := &Pipeline{
		config:     cfg,
		limiter:    limiter,
		normalizer: n,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run normalizes a slice of field maps and returns the records.
// Records arrive in completion order, not input order.
func (p *Pipeline) Run(ctx context.Context, fields []record.Fields) ([]*record.Record, error) {
	results := make([]*record.Record, 0, len(fields))
	_, err := p.Stream(ctx, slices.Values(fields), func(r *record.Record) error {
		results = append(results, r)
		return nil
	})
	return results, err
}

// Stream normalizes field maps from seq and calls handler for each record.
// Field maps without a query are dropped. The handler is called from a single
// goroutine; its first error stops the feed and the workers, and is returned.
// Returns the number of records handed to the handler.
func (p *Pipeline) Stream(ctx context.Context, seq iter.Seq[record.Fields], handler Handler) (int, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := config.Pipeline
	fieldsChan := make(chan record.Fields, cfg.InputChannelBuffer)
	resultChan := make(chan *record.Record, cfg.ResultChannelBuffer)
	var wg sync.WaitGroup

	for range p.config.Workers {
		wg.Go(func() {
			p.worker(ctx, fieldsChan, resultChan)
		})
	}

	var collectorWg sync.WaitGroup
	var handlerErr error
	count := 0
	collectorWg.Go(func() {
		for r := range resultChan {
			if handlerErr != nil {
				// drain so blocked workers can exit
				continue
			}
			count++
			metrics.ObserveRecord(string(r.Label), r.ThreatScore)
			if !p.config.Quiet && cfg.LogDetections {
				logDetection(r)
			}
			if err := handler(r); err != nil {
				handlerErr = err
				cancel()
			}
		}
	})

	go func() {
		defer close(fieldsChan)
		for f := range seq {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if err := p.limiter.Wait(ctx); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case fieldsChan <- f:
			}
		}
	}()

	wg.Wait()
	close(resultChan)
	collectorWg.Wait()

	if handlerErr != nil {
		return count, handlerErr
	}
	return count, parent.Err()
}

// worker normalizes field maps until the feed closes or ctx is cancelled
func (p *Pipeline) worker(ctx context.Context, fieldsChan <-chan record.Fields, resultChan chan<- *record.Record) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-fieldsChan:
			if !ok {
				return
			}

			r, err := p.normalizer.Normalize(f)
			if err != nil {
				metrics.DroppedTotal.Inc()
				slog.Debug("dropped candidate", "error", err)
				continue
			}

			if p.enricher != nil {
				if err := p.enricher.EnrichRecord(ctx, r); err != nil {
					slog.Debug("enrichment failed", "query", r.Query, "error", err)
				}
			}

			select {
			case <-ctx.Done():
				return
			case resultChan <- r:
			}
		}
	}
}

// logDetection logs Tunneling records with slog.Group for nested attributes
func logDetection(r *record.Record) {
	if !r.IsTunneling() {
		return
	}
	attrs := []any{
		slog.String("query", r.Query),
		slog.String("source_ip", r.SourceIP),
		slog.Group("score",
			slog.Int("threat", r.ThreatScore),
			slog.Float64("entropy", r.Entropy),
			slog.Int("length", r.Length),
			slog.Float64("confidence", r.Confidence),
		),
	}
	if len(r.Indicators) > 0 {
		attrs = append(attrs, slog.Any("indicators", r.Indicators))
	}
	slog.Info("tunneling detected", attrs...)
}
