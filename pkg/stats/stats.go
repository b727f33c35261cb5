// Package stats summarizes batches of normalized records.
package stats

import (
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

// FeatureStats is a snapshot over one batch of records
type FeatureStats struct {
	AvgEntropy        float64 `json:"avgEntropy"`
	AvgLength         float64 `json:"avgLength"`
	NXDomainRatio     float64 `json:"nxdomainRatio"`
	TotalQueries      int     `json:"totalQueries"`
	UniqueSubdomains  int     `json:"uniqueSubdomains"`
	TunnelingCount    int     `json:"tunnelingCount"`
	AvgThreatScore    float64 `json:"avgThreatScore"`
	UniqueBaseDomains int     `json:"uniqueBaseDomains"`
}

// Aggregate computes a snapshot from scratch. An empty batch yields all zeros.
func Aggregate(records []*record.Record) FeatureStats {
	if len(records) == 0 {
		return FeatureStats{}
	}

	var (
		entropySum float64
		lengthSum  int
		scoreSum   int
		nxdomain   int
		tunneling  int
	)
	subdomains := make(map[string]struct{})
	baseDomains := make(map[string]struct{})

	for _, r := range records {
		entropySum += r.Entropy
		lengthSum += r.Length
		scoreSum += r.ThreatScore
		if strings.EqualFold(r.ResponseCode, "NXDOMAIN") {
			nxdomain++
		}
		if r.IsTunneling() {
			tunneling++
		}
		subdomains[tunnel.LeadingLabel(r.Query)] = struct{}{}
		if base := BaseDomain(r.Query); base != "" {
			baseDomains[base] = struct{}{}
		}
	}

	n := float64(len(records))
	return FeatureStats{
		AvgEntropy:        tunnel.Round(entropySum/n, 3),
		AvgLength:         tunnel.Round(float64(lengthSum)/n, 1),
		NXDomainRatio:     tunnel.Round(float64(nxdomain)/n, 3),
		TotalQueries:      len(records),
		UniqueSubdomains:  len(subdomains),
		TunnelingCount:    tunneling,
		AvgThreatScore:    tunnel.Round(float64(scoreSum)/n, 1),
		UniqueBaseDomains: len(baseDomains),
	}
}

// BaseDomain returns the registrable domain (eTLD+1) of name.
// Names without a registrable suffix fall back to their last two labels.
func BaseDomain(name string) string {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if name == "" {
		return ""
	}
	if base, err := publicsuffix.EffectiveTLDPlusOne(name); err == nil {
		return base
	}
	labels := strings.Split(name, ".")
	if len(labels) <= 2 {
		return name
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
