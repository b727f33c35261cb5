package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"02/Jan/2006:15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
}

// Unix values above each cutoff are taken as milliseconds, microseconds
// and nanoseconds respectively
const (
	unixMillisCutoff = 1e11
	unixMicrosCutoff = 1e14
	unixNanosCutoff  = 1e17
)

// parseTimestamp resolves a timestamp value. Numbers (or numeric text) are
// Unix seconds, milliseconds, microseconds or nanoseconds; text is tried
// against common log layouts. Results outside years 0-9999 are unresolvable.
func parseTimestamp(v record.Value) (time.Time, bool) {
	if f, ok := v.Float(); ok {
		if f <= 0 || f >= math.MaxInt64 {
			return time.Time{}, false
		}
		var t time.Time
		switch {
		case f > unixNanosCutoff:
			t = time.Unix(0, int64(f))
		case f > unixMicrosCutoff:
			t = time.UnixMicro(int64(f))
		case f > unixMillisCutoff:
			t = time.UnixMilli(int64(f))
		default:
			sec := int64(f)
			t = time.Unix(sec, int64((f-float64(sec))*1e9))
		}
		return inRange(t.UTC())
	}

	text, ok := v.Text()
	if !ok {
		return time.Time{}, false
	}
	text = strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return inRange(t.UTC())
		}
	}
	return time.Time{}, false
}

// inRange rejects times JSON cannot encode
func inRange(t time.Time) (time.Time, bool) {
	if y := t.Year(); y < 0 || y > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// canonicalType upper-cases a record type, mapping numeric codes to mnemonics
func canonicalType(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		if name, ok := dns.TypeToString[uint16(n)]; ok {
			return name
		}
	}
	return s
}

// canonicalRcode upper-cases a response code, mapping numeric codes to mnemonics
func canonicalRcode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if name, ok := dns.RcodeToString[n]; ok {
			return name
		}
	}
	return s
}
