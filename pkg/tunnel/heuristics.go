package tunnel

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	base32Pattern = regexp.MustCompile(`^[A-Z2-7]+=*$`)
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)
	hexPattern    = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// minEncodedLabel is the shortest label worth testing for an encoding.
// Shorter labels collide with ordinary hostnames (e.g. "facebook" decodes as base32).
const minEncodedLabel = 16

// CalculateEntropy returns the Shannon entropy (base 2) of s over its
// character frequency distribution, rounded to 3 decimal places.
// The empty string has entropy 0.
func CalculateEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, c := range s {
		freq[c]++
		total++
	}

	entropy := 0.0
	length := float64(total)
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return Round(entropy, 3)
}

// QueryLength returns the character count of a query name
func QueryLength(s string) int {
	return utf8.RuneCountInString(s)
}

// IsHighEntropy checks if s has entropy above threshold
func IsHighEntropy(s string, threshold float64) bool {
	return CalculateEntropy(s) > threshold
}

// Round rounds x to the given number of decimal places, half away from zero
func Round(x float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

// LeadingLabel returns the text before the first dot of a name
func LeadingLabel(name string) string {
	label, _, _ := strings.Cut(name, ".")
	return label
}

// DetectEncoding attempts to detect the encoding of a DNS label.
// Returns "hex", "base32", "base64", "none" for empty input, or "unknown".
func DetectEncoding(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "none"
	}

	// Hex first: every even-length hex string is also valid base32 text
	if isHex(label) {
		if _, err := hex.DecodeString(label); err == nil {
			return "hex"
		}
	}

	// DNS is case-insensitive, so base32 payloads usually arrive lower-cased
	upper := strings.ToUpper(label)
	if isBase32(upper) {
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(upper, "=")); err == nil {
			return "base32"
		}
	}

	if isBase64(label) {
		if _, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(label, "=")); err == nil {
			return "base64"
		}
	}

	return "unknown"
}

// LooksEncoded reports the encoding of a label long enough to carry a payload
func LooksEncoded(label string) (string, bool) {
	if len(label) < minEncodedLabel {
		return "", false
	}
	switch enc := DetectEncoding(label); enc {
	case "hex", "base32", "base64":
		return enc, true
	default:
		return "", false
	}
}

// Plain words are valid base32/base64 alphabets too; encoded payloads carry digits
func isBase32(s string) bool {
	return base32Pattern.MatchString(s) && len(s) >= 8 && strings.ContainsAny(s, "234567")
}

func isBase64(s string) bool {
	// Labels cannot carry '+' or '/', so require mixed case to tell it from plain text
	return base64Pattern.MatchString(s) && strings.ToLower(s) != s && strings.ToUpper(s) != s &&
		strings.ContainsAny(s, "0123456789")
}

func isHex(s string) bool {
	return hexPattern.MatchString(s) && len(s)%2 == 0
}
