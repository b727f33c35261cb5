package enrich

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/metrics"
	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

// Enricher fills in location data and rescores records in place
type Enricher struct {
	locator     Locator
	scorer      *tunnel.Scorer
	concurrency int
	timeout     time.Duration
}

// NewEnricher creates an enricher. Concurrency and per-lookup timeout come
// from config.Enrich.
func NewEnricher(locator Locator, scorer *tunnel.Scorer) *Enricher {
	if scorer == nil {
		scorer = tunnel.NewScorer(nil)
	}
	cfg := config.Enrich
	return &Enricher{
		locator:     locator,
		scorer:      scorer,
		concurrency: max(1, cfg.Concurrency),
		timeout:     cfg.LookupTimeout,
	}
}

// Enrich resolves every record that has no location yet. Each address is
// looked up once. Records are marked with the resolving placeholder while
// lookups run; failed lookups clear it. Lookup failures are not returned,
// only cancellation is.
func (e *Enricher) Enrich(ctx context.Context, records []*record.Record) error {
	pending := make(map[string][]*record.Record)
	for _, r := range records {
		if r.HasLocation() {
			continue
		}
		r.Location = record.LocationResolving
		pending[r.SourceIP] = append(pending[r.SourceIP], r)
	}
	if len(pending) == 0 {
		return nil
	}

	// Use errgroup with SetLimit for bounded concurrency
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for ip, group := range pending {
		g.Go(func() error {
			loc, err := e.lookup(gctx, ip)
			for _, r := range group {
				e.apply(r, loc, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// EnrichRecord resolves a single record, for use on a live feed
func (e *Enricher) EnrichRecord(ctx context.Context, r *record.Record) error {
	if r.HasLocation() {
		return nil
	}
	r.Location = record.LocationResolving
	loc, err := e.lookup(ctx, r.SourceIP)
	e.apply(r, loc, err)
	return err
}

func (e *Enricher) lookup(ctx context.Context, ip string) (Location, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	loc, err := e.locator.Locate(ctx, ip)
	metrics.ObserveLookup(err)
	return loc, err
}

// apply writes the lookup outcome to r and recomputes its score
func (e *Enricher) apply(r *record.Record, loc Location, err error) {
	if err != nil {
		r.Location = ""
		r.Lat, r.Lng = nil, nil
	} else {
		lat, lng := loc.Lat, loc.Lng
		r.Location = loc.Name
		r.Lat, r.Lng = &lat, &lng
	}
	r.ThreatScore = e.scorer.Score(r)
	r.Indicators = e.scorer.Indicators(r)
}
