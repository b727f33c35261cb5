// Package normalize turns loosely-typed field maps into canonical records.
package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/reputation"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

// Defaults for fields that cannot be resolved from input
const (
	DefaultSourceIP     = "192.168.1.100"
	DefaultType         = "A"
	DefaultResponseCode = "NOERROR"
)

// ErrNoQuery is returned when no alias yields a query name
var ErrNoQuery = errors.New("no query name in record")

// Normalizer resolves aliases and runs detection over a single field map.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	reputation reputation.Lookup
	classifier *tunnel.Classifier
	scorer     *tunnel.Scorer
	rules      []AliasRule
	claimed    map[string]struct{}
	now        func() time.Time
	newID      func() string
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClock sets the source of ingestion time for records without a timestamp
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator sets the id source for records without an id
func WithIDGenerator(newID func() string) Option {
	return func(n *Normalizer) { n.newID = newID }
}

// WithRules replaces the alias table
func WithRules(rules []AliasRule) Option {
	return func(n *Normalizer) { n.rules = rules }
}

// New creates a normalizer. Nil collaborators fall back to the built-in
// reputation tables, a classifier on the global random source and the
// default high-risk regions.
func New(lookup reputation.Lookup, classifier *tunnel.Classifier, scorer *tunnel.Scorer, opts ...Option) *Normalizer {
	if lookup == nil {
		lookup = reputation.NewChecker(reputation.DefaultTables())
	}
	if classifier == nil {
		classifier = tunnel.NewClassifier(nil)
	}
	if scorer == nil {
		scorer = tunnel.NewScorer(nil)
	}

	n := &Normalizer{
		reputation: lookup,
		classifier: classifier,
		scorer:     scorer,
		rules:      DefaultRules,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.claimed = aliasKeys(n.rules)
	return n
}

// Scorer returns the scorer used for threat scores
func (n *Normalizer) Scorer() *tunnel.Scorer {
	return n.scorer
}

// Normalize produces one canonical record from fields.
//
// The stages run in a fixed order: resolve the query, compute entropy and
// length, classify with a zero threat score, resolve reputation, then score
// the fully-populated record. The label is never revisited after scoring, so
// the score branch of the classification rule does not fire on this path.
func (n *Normalizer) Normalize(fields record.Fields) (*record.Record, error) {
	resolved := n.resolve(fields)

	query, ok := resolved[FieldQuery]
	if !ok {
		return nil, ErrNoQuery
	}
	queryText, _ := query.Text()
	queryText = strings.TrimSpace(queryText)

	r := &record.Record{
		Query:        queryText,
		SourceIP:     DefaultSourceIP,
		Type:         DefaultType,
		ResponseCode: DefaultResponseCode,
	}

	r.Entropy = tunnel.CalculateEntropy(queryText)
	r.Length = tunnel.QueryLength(queryText)

	class := n.classifier.Classify(r.Entropy, r.Length, 0)
	r.Label = class.Label
	r.Confidence = class.Confidence

	if v, ok := resolved[FieldID]; ok {
		r.ID, _ = v.Text()
	} else {
		r.ID = n.newID()
	}
	if v, ok := resolved[FieldSourceIP]; ok {
		ip, _ := v.Text()
		r.SourceIP = strings.TrimSpace(ip)
	}
	r.Timestamp = n.now().UTC()
	if v, ok := resolved[FieldTimestamp]; ok {
		if ts, ok := parseTimestamp(v); ok {
			r.Timestamp = ts
		}
	}
	if v, ok := resolved[FieldType]; ok {
		t, _ := v.Text()
		r.Type = canonicalType(t)
	}
	if v, ok := resolved[FieldResponseCode]; ok {
		rc, _ := v.Text()
		r.ResponseCode = canonicalRcode(rc)
	}
	if v, ok := resolved[FieldLocation]; ok {
		loc, _ := v.Text()
		r.Location = strings.TrimSpace(loc)
	}
	if v, ok := resolved[FieldLat]; ok {
		if f, ok := v.Float(); ok {
			r.Lat = &f
		}
	}
	if v, ok := resolved[FieldLng]; ok {
		if f, ok := v.Float(); ok {
			r.Lng = &f
		}
	}

	r.Reputation = n.reputation.Check(r.SourceIP)

	r.ThreatScore = n.scorer.Score(r)
	r.Indicators = n.scorer.Indicators(r)

	r.Metadata = n.metadata(fields)

	return r, nil
}

// NormalizeAll normalizes a batch, skipping field maps without a query
func (n *Normalizer) NormalizeAll(batch []record.Fields) []*record.Record {
	records := make([]*record.Record, 0, len(batch))
	for _, fields := range batch {
		r, err := n.Normalize(fields)
		if err != nil {
			continue
		}
		records = append(records, r)
	}
	return records
}

// resolve applies the alias rules, keeping the first non-empty scalar per field
func (n *Normalizer) resolve(fields record.Fields) map[Field]record.Value {
	resolved := make(map[Field]record.Value, len(n.rules))
	for _, rule := range n.rules {
		if _, done := resolved[rule.Field]; done {
			continue
		}
		for _, key := range rule.Keys {
			v, ok := fields[key]
			if !ok {
				continue
			}
			text, ok := v.Text()
			if !ok || strings.TrimSpace(text) == "" {
				continue
			}
			// a boolean is never a query name
			if rule.Field == FieldQuery && v.Kind() == record.KindBool {
				continue
			}
			resolved[rule.Field] = v
			break
		}
	}
	return resolved
}

// metadata copies every key the alias table does not claim
func (n *Normalizer) metadata(fields record.Fields) map[string]record.Value {
	var meta map[string]record.Value
	for k, v := range fields {
		if _, claimed := n.claimed[k]; claimed {
			continue
		}
		if meta == nil {
			meta = make(map[string]record.Value)
		}
		meta[k] = v
	}
	return meta
}
