// Package metrics exposes Prometheus counters for the detection pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dnssentry"

var (
	// ParsedTotal counts documents parsed, by the strategy that claimed them
	ParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parsed_documents_total",
		Help:      "Documents parsed, by parsing strategy.",
	}, []string{"strategy"})

	// RecordsTotal counts normalized records, by label
	RecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_total",
		Help:      "Normalized DNS query records, by classification label.",
	}, []string{"label"})

	// DroppedTotal counts candidate field maps that produced no record
	DroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_candidates_total",
		Help:      "Candidate field maps dropped for lacking a query name.",
	})

	// EnrichmentTotal counts geolocation lookups, by outcome
	EnrichmentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_lookups_total",
		Help:      "Geolocation lookups, by outcome (ok, error).",
	}, []string{"outcome"})

	// ThreatScore observes final threat scores
	ThreatScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "threat_score",
		Help:      "Distribution of final threat scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
)

// ObserveParse records the outcome of one parsed document
func ObserveParse(strategy string, dropped int) {
	ParsedTotal.WithLabelValues(strategy).Inc()
	if dropped > 0 {
		DroppedTotal.Add(float64(dropped))
	}
}

// ObserveRecord records one normalized record
func ObserveRecord(label string, score int) {
	RecordsTotal.WithLabelValues(label).Inc()
	ThreatScore.Observe(float64(score))
}

// ObserveLookup records one geolocation lookup
func ObserveLookup(err error) {
	if err != nil {
		EnrichmentTotal.WithLabelValues("error").Inc()
		return
	}
	EnrichmentTotal.WithLabelValues("ok").Inc()
}

// Handler returns the HTTP handler serving the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
