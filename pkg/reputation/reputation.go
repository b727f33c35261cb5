// Package reputation classifies source addresses against static threat lists.
//
// The tables are immutable once a Checker is built. Deployments that want a
// live threat-intelligence feed implement Lookup and hand it to the normalizer
// in place of a Checker.
package reputation

import (
	"strings"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Lookup resolves the reputation of an IP address.
// Implementations must be deterministic, side-effect free and safe for concurrent use.
type Lookup interface {
	Check(ip string) record.Reputation
}

// Tables holds the reference data behind a Checker
type Tables struct {
	Malicious     []string `mapstructure:"malicious" json:"malicious"`
	Suspicious    []string `mapstructure:"suspicious" json:"suspicious"`
	PrivatePrefix string   `mapstructure:"private_prefix" json:"private_prefix"`
}

// DefaultTables returns the built-in reference tables
func DefaultTables() Tables {
	return Tables{
		Malicious: []string{
			"192.168.1.105",
			"10.0.0.66",
			"185.220.101.4",
			"45.155.205.233",
		},
		Suspicious: []string{
			"192.168.1.110",
			"10.0.0.23",
			"103.224.182.250",
		},
		PrivatePrefix: "192.168.",
	}
}

// Checker is a Lookup over fixed tables
type Checker struct {
	malicious     map[string]struct{}
	suspicious    map[string]struct{}
	privatePrefix string
}

// NewChecker builds a checker from tables. The tables are copied.
func NewChecker(t Tables) *Checker {
	return &Checker{
		malicious:     toSet(t.Malicious),
		suspicious:    toSet(t.Suspicious),
		privatePrefix: strings.TrimSpace(t.PrivatePrefix),
	}
}

// Check classifies ip. Exact malicious matches win over suspicious ones,
// which win over the private-prefix rule; anything else is UNKNOWN.
func (c *Checker) Check(ip string) record.Reputation {
	ip = strings.TrimSpace(ip)
	if _, ok := c.malicious[ip]; ok {
		return record.ReputationMalicious
	}
	if _, ok := c.suspicious[ip]; ok {
		return record.ReputationSuspicious
	}
	if c.privatePrefix != "" && strings.HasPrefix(ip, c.privatePrefix) {
		return record.ReputationClean
	}
	return record.ReputationUnknown
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
