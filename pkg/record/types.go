package record

import "time"

// Label is the binary classification of a query
type Label string

const (
	LabelNormal    Label = "Normal"
	LabelTunneling Label = "Tunneling"
)

// Reputation is the coarse trust class of a source address
type Reputation string

const (
	ReputationClean      Reputation = "CLEAN"
	ReputationSuspicious Reputation = "SUSPICIOUS"
	ReputationMalicious  Reputation = "MALICIOUS"
	ReputationUnknown    Reputation = "UNKNOWN"
)

// LocationResolving marks a record whose geolocation lookup is in flight
const LocationResolving = "Resolving..."

// Record is the canonical, normalized DNS query record.
//
// Length and Entropy are computed once from Query at normalization time.
// Only the enrichment fields (Location, Lat, Lng, ThreatScore) change after that.
type Record struct {
	ID           string     `json:"id"`
	Timestamp    time.Time  `json:"timestamp"`
	SourceIP     string     `json:"sourceIp"`
	Query        string     `json:"query"`
	Type         string     `json:"type"`
	ResponseCode string     `json:"responseCode"`
	Length       int        `json:"length"`
	Entropy      float64    `json:"entropy"`
	Reputation   Reputation `json:"reputation"`
	Label        Label      `json:"label"`
	Confidence   float64    `json:"confidence"`
	ThreatScore  int        `json:"threatScore"`

	// Geospatial enrichment, absent until a locator fills it in
	Location string   `json:"location,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`

	Indicators []string         `json:"indicators,omitempty"`
	Metadata   map[string]Value `json:"metadata,omitempty"`
}

// IsTunneling reports whether the record was labelled Tunneling
func (r *Record) IsTunneling() bool {
	return r.Label == LabelTunneling
}

// HasLocation reports whether a resolved location is present
func (r *Record) HasLocation() bool {
	return r.Location != "" && r.Location != LocationResolving
}

// Fields is one loosely-typed input record keyed by its source field names
type Fields map[string]Value
