package tunnel

import (
	"strings"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// DNScat2Detector matches dnscat2 queries: an explicit "dnscat" prefix, or
// hex-encoded session data carried over TXT, CNAME or MX
type DNScat2Detector struct{}

func (DNScat2Detector) Name() string { return "dnscat2" }

func (DNScat2Detector) Match(r *record.Record) bool {
	label := strings.ToLower(LeadingLabel(r.Query))
	if label == "dnscat" || strings.HasPrefix(strings.ToLower(r.Query), "dnscat.") {
		return true
	}
	switch strings.ToUpper(r.Type) {
	case "TXT", "CNAME", "MX":
		enc, ok := LooksEncoded(label)
		return ok && enc == "hex"
	}
	return false
}

// IodineDetector matches iodine queries: NULL records with a long
// encoded leading label
type IodineDetector struct{}

func (IodineDetector) Name() string { return "iodine" }

func (IodineDetector) Match(r *record.Record) bool {
	// Iodine prefers NULL; the first char of the label is its command code
	return strings.EqualFold(r.Type, "NULL") && len(LeadingLabel(r.Query)) >= minEncodedLabel
}

// DNSTTDetector matches dnstt queries: TXT lookups whose leading label is
// base32 session data
type DNSTTDetector struct{}

func (DNSTTDetector) Name() string { return "dnstt" }

func (DNSTTDetector) Match(r *record.Record) bool {
	if !strings.EqualFold(r.Type, "TXT") {
		return false
	}
	enc, ok := LooksEncoded(LeadingLabel(r.Query))
	return ok && enc == "base32"
}

// DNS2TCPDetector matches dns2tcp queries: KEY lookups or its "=command" labels
type DNS2TCPDetector struct{}

func (DNS2TCPDetector) Name() string { return "dns2tcp" }

func (DNS2TCPDetector) Match(r *record.Record) bool {
	if strings.EqualFold(r.Type, "KEY") {
		return true
	}
	for _, label := range strings.Split(r.Query, ".") {
		if strings.HasPrefix(label, "=") && len(label) > 1 {
			return true
		}
	}
	return false
}
