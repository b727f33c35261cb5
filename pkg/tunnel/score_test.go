package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

func TestScore(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		name string
		r    record.Record
		want int
	}{
		{
			name: "Quiet query from clean source",
			r:    record.Record{Entropy: 2.6, Length: 10, ResponseCode: "NOERROR", Type: "A", Location: "Germany", Reputation: record.ReputationClean},
			want: 0,
		},
		{
			name: "Moderate entropy and length",
			r:    record.Record{Entropy: 4.0, Length: 50, ResponseCode: "NOERROR", Type: "A", Location: "Germany", Reputation: record.ReputationClean},
			want: 20,
		},
		{
			name: "Unresolved location",
			r:    record.Record{Entropy: 2.0, Length: 10, Type: "A", Location: ""},
			want: 5,
		},
		{
			name: "Resolving placeholder counts as unresolved",
			r:    record.Record{Entropy: 2.0, Length: 10, Type: "A", Location: record.LocationResolving},
			want: 5,
		},
		{
			name: "Rounded sum",
			r:    record.Record{Entropy: 3.61, Length: 10, Type: "A"},
			want: 8,
		},
		{
			name: "SERVFAIL TXT suspicious",
			r:    record.Record{Entropy: 1, Length: 10, ResponseCode: "SERVFAIL", Type: "TXT", Location: "France", Reputation: record.ReputationSuspicious},
			want: 35,
		},
		{
			name: "Lower-case codes",
			r:    record.Record{Entropy: 1, Length: 10, ResponseCode: "nxdomain", Type: "null", Location: "France"},
			want: 30,
		},
		{
			name: "High-risk location substring, case-insensitive",
			r:    record.Record{Entropy: 1, Length: 10, Type: "A", Location: "moscow, russia"},
			want: 15,
		},
		{
			name: "All factors maxed clamps to 100",
			r: record.Record{
				Entropy: 6, Length: 120, ResponseCode: "NXDOMAIN", Type: "NULL",
				Location: "Tehran, Iran", Reputation: record.ReputationMalicious,
			},
			want: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Score(&tt.r))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	s := NewScorer(nil)
	rcodes := []string{"", "NOERROR", "NXDOMAIN", "SERVFAIL"}
	types := []string{"A", "TXT", "NULL"}
	locations := []string{"", record.LocationResolving, "Germany", "China"}
	reputations := []record.Reputation{record.ReputationClean, record.ReputationUnknown, record.ReputationSuspicious, record.ReputationMalicious}

	for _, entropy := range []float64{0, 3.5, 4.2, 8} {
		for _, length := range []int{0, 40, 55, 253} {
			for _, rc := range rcodes {
				for _, typ := range types {
					for _, loc := range locations {
						for _, rep := range reputations {
							r := record.Record{Entropy: entropy, Length: length, ResponseCode: rc, Type: typ, Location: loc, Reputation: rep}
							score := s.Score(&r)
							assert.GreaterOrEqual(t, score, 0)
							assert.LessOrEqual(t, score, 100)
						}
					}
				}
			}
		}
	}
}

func TestExplain(t *testing.T) {
	s := NewScorer(nil)
	r := record.Record{
		Entropy: 4.5, Length: 60, ResponseCode: "NXDOMAIN", Type: "TXT",
		Location: "Beijing, China", Reputation: record.ReputationSuspicious,
	}

	b := s.Explain(&r)
	assert.InDelta(t, 30.0, b.Entropy, 1e-9)
	assert.InDelta(t, 10.0, b.Length, 1e-9)
	assert.Equal(t, 15, b.ResponseCode)
	assert.Equal(t, 10, b.QueryType)
	assert.Equal(t, 15, b.Location)
	assert.Equal(t, 15, b.Reputation)
	assert.Equal(t, 95, b.Total())
	assert.Equal(t, b.Total(), s.Score(&r))
}

func TestNewScorer_CustomRegions(t *testing.T) {
	s := NewScorer([]string{"Atlantis"})

	assert.True(t, s.IsHighRisk("Lost City, ATLANTIS"))
	assert.False(t, s.IsHighRisk("Moscow, Russia"), "custom list replaces the defaults")

	def := NewScorer([]string{})
	assert.True(t, def.IsHighRisk("Pyongyang, North Korea"))
	assert.True(t, def.IsHighRisk("Unknown"))
	assert.False(t, def.IsHighRisk("Paris, France"))
}

func TestIndicators(t *testing.T) {
	s := NewScorer(nil)

	r := record.Record{
		Query:        "aGVsbG8gd29ybGQgdGhpcyBpcyBhIHRlc3Q.tunnel.evil.com",
		Entropy:      4.726,
		Length:       51,
		ResponseCode: "NXDOMAIN",
		Type:         "TXT",
		Reputation:   record.ReputationMalicious,
	}

	assert.Equal(t, []string{
		"high_entropy(4.73)",
		"long_query(51)",
		"nxdomain",
		"txt_query",
		"unresolved_location",
		"malicious_source",
		"encoded_label:base64",
	}, s.Indicators(&r))

	quiet := record.Record{Query: "google.com", Entropy: 2.646, Length: 10, ResponseCode: "NOERROR", Type: "A", Location: "United States"}
	assert.Empty(t, s.Indicators(&quiet))
}
