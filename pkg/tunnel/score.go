package tunnel

import (
	"fmt"
	"math"
	"strings"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Factor caps and thresholds for the threat score
const (
	entropyFloor  = 3.5
	entropyWeight = 30.0
	entropyCap    = 40.0

	lengthFloor  = 40
	lengthWeight = 0.5
	lengthCap    = 20.0

	nxdomainPoints   = 15
	servfailPoints   = 10
	txtPoints        = 10
	nullPoints       = 15
	highRiskPoints   = 15
	unresolvedPoints = 5
	maliciousPoints  = 25
	suspiciousPoints = 15

	maxScore = 100
)

// DefaultHighRiskRegions are location names (or substrings) scored as high risk
var DefaultHighRiskRegions = []string{"Russia", "China", "North Korea", "Iran", "Unknown"}

// Breakdown is the per-factor contribution to a threat score
type Breakdown struct {
	Entropy      float64 `json:"entropy"`
	Length       float64 `json:"length"`
	ResponseCode int     `json:"responseCode"`
	QueryType    int     `json:"queryType"`
	Location     int     `json:"location"`
	Reputation   int     `json:"reputation"`
}

// Total sums the factors, rounds, and clamps the result to [0, 100]
func (b Breakdown) Total() int {
	sum := b.Entropy + b.Length + float64(b.ResponseCode+b.QueryType+b.Location+b.Reputation)
	score := int(math.Round(sum))
	return max(0, min(maxScore, score))
}

// Scorer computes threat scores from fully-populated records
type Scorer struct {
	highRisk  []string
	detectors *Registry
}

// NewScorer creates a scorer over the given high-risk region names.
// The slice is copied; an empty list falls back to DefaultHighRiskRegions.
func NewScorer(highRiskRegions []string) *Scorer {
	if len(highRiskRegions) == 0 {
		highRiskRegions = DefaultHighRiskRegions
	}
	regions := make([]string, 0, len(highRiskRegions))
	for _, r := range highRiskRegions {
		if r = strings.TrimSpace(r); r != "" {
			regions = append(regions, strings.ToLower(r))
		}
	}
	return &Scorer{highRisk: regions, detectors: DefaultRegistry()}
}

// WithDetectors replaces the tool signature detectors used for indicators
func (s *Scorer) WithDetectors(r *Registry) *Scorer {
	if r == nil {
		r = NewRegistry()
	}
	s.detectors = r
	return s
}

// Score returns the threat score of r in [0, 100]
func (s *Scorer) Score(r *record.Record) int {
	return s.Explain(r).Total()
}

// Explain returns the factor breakdown behind Score
func (s *Scorer) Explain(r *record.Record) Breakdown {
	var b Breakdown

	if r.Entropy > entropyFloor {
		b.Entropy = math.Min(entropyCap, (r.Entropy-entropyFloor)*entropyWeight)
	}

	if r.Length > lengthFloor {
		b.Length = math.Min(lengthCap, float64(r.Length-lengthFloor)*lengthWeight)
	}

	switch strings.ToUpper(r.ResponseCode) {
	case "NXDOMAIN":
		b.ResponseCode = nxdomainPoints
	case "SERVFAIL":
		b.ResponseCode = servfailPoints
	}

	switch strings.ToUpper(r.Type) {
	case "TXT":
		b.QueryType = txtPoints
	case "NULL":
		b.QueryType = nullPoints
	}

	b.Location = s.locationPoints(r.Location)

	switch r.Reputation {
	case record.ReputationMalicious:
		b.Reputation = maliciousPoints
	case record.ReputationSuspicious:
		b.Reputation = suspiciousPoints
	}

	return b
}

// IsHighRisk reports whether a location matches a high-risk region
func (s *Scorer) IsHighRisk(location string) bool {
	loc := strings.ToLower(location)
	for _, region := range s.highRisk {
		if strings.Contains(loc, region) {
			return true
		}
	}
	return false
}

func (s *Scorer) locationPoints(location string) int {
	if location == "" || location == record.LocationResolving {
		return unresolvedPoints
	}
	if s.IsHighRisk(location) {
		return highRiskPoints
	}
	return 0
}

// Indicators lists the human-readable reasons behind a record's score.
// They are informational and never feed back into label or score.
func (s *Scorer) Indicators(r *record.Record) []string {
	b := s.Explain(r)
	var indicators []string

	if b.Entropy > 0 {
		indicators = append(indicators, fmt.Sprintf("high_entropy(%.2f)", r.Entropy))
	}
	if b.Length > 0 {
		indicators = append(indicators, fmt.Sprintf("long_query(%d)", r.Length))
	}
	switch b.ResponseCode {
	case nxdomainPoints:
		indicators = append(indicators, "nxdomain")
	case servfailPoints:
		indicators = append(indicators, "servfail")
	}
	switch b.QueryType {
	case txtPoints:
		indicators = append(indicators, "txt_query")
	case nullPoints:
		indicators = append(indicators, "null_query")
	}
	switch b.Location {
	case highRiskPoints:
		indicators = append(indicators, "high_risk_location")
	case unresolvedPoints:
		indicators = append(indicators, "unresolved_location")
	}
	switch b.Reputation {
	case maliciousPoints:
		indicators = append(indicators, "malicious_source")
	case suspiciousPoints:
		indicators = append(indicators, "suspicious_source")
	}
	if enc, ok := LooksEncoded(LeadingLabel(r.Query)); ok {
		indicators = append(indicators, "encoded_label:"+enc)
	}
	for _, tool := range s.detectors.Match(r) {
		indicators = append(indicators, "tool:"+tool)
	}

	return indicators
}
