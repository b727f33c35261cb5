package input

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// DefaultCSVColumns is the column order assumed for header-less CSV
var DefaultCSVColumns = []string{"timestamp", "sourceIp", "query", "type", "responseCode"}

// headerHints mark a first CSV line as a header row
var headerHints = []string{"query", "domain", "qname", "ip", "src", "timestamp", "time"}

// recordTypes are the mnemonics recognised in free-text lines
var recordTypes = map[string]struct{}{
	"A": {}, "AAAA": {}, "TXT": {}, "CNAME": {}, "MX": {}, "NS": {},
}

// ipv4Pattern matches a dotted quad, optionally followed by #port or :port
var ipv4Pattern = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3}){3})(?:[#:]\d+)?$`)

// datePrefix matches tokens that open with a calendar date
var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// A free-text first token longer than this is taken as a timestamp
const timestampTokenMin = 10

// DocumentStrategy parses the whole content as one JSON array or object
type DocumentStrategy struct{}

func (DocumentStrategy) Name() string { return "document" }

func (DocumentStrategy) Extract(doc *Document) ([]record.Fields, bool) {
	v, ok := decodeJSON(doc.Content)
	if !ok {
		return nil, false
	}

	switch x := v.(type) {
	case []any:
		fields := make([]record.Fields, 0, len(x))
		for _, item := range x {
			if obj, ok := item.(map[string]any); ok {
				fields = append(fields, record.FieldsOf(obj))
			}
		}
		return fields, true
	case map[string]any:
		return []record.Fields{record.FieldsOf(x)}, true
	default:
		return nil, false
	}
}

// CSVStrategy parses comma-separated lines with or without a header row
type CSVStrategy struct{}

func (CSVStrategy) Name() string { return "csv" }

func (CSVStrategy) Extract(doc *Document) ([]record.Fields, bool) {
	if len(doc.Lines) == 0 {
		return nil, false
	}
	first := doc.Lines[0]
	if !strings.Contains(first, ",") || strings.Contains(first, "\t") {
		return nil, false
	}
	// JSON lines carry commas too
	if strings.HasPrefix(first, "{") {
		return nil, false
	}

	headers := splitCSVLine(first)
	data := doc.Lines[1:]
	if !isHeaderRow(headers) {
		headers = DefaultCSVColumns
		data = doc.Lines
	}

	var fields []record.Fields
	for _, line := range data {
		values := splitCSVLine(line)
		row := make(record.Fields, len(headers))
		for i, h := range headers {
			if i >= len(values) {
				break
			}
			row[h] = record.String(values[i])
		}
		if hasText(row, "query") || hasText(row, "domain") || len(values) >= 3 {
			fields = append(fields, row)
		}
	}
	return fields, false
}

// LineStrategy parses each line as a JSON object, falling back to free text
type LineStrategy struct{}

func (LineStrategy) Name() string { return "lines" }

func (LineStrategy) Extract(doc *Document) ([]record.Fields, bool) {
	var fields []record.Fields
	for _, line := range doc.Lines {
		if f, ok := FieldsFromLine(line); ok {
			fields = append(fields, f)
		}
	}
	return fields, false
}

// FieldsFromLine extracts fields from one log line: a standalone JSON
// object if it parses as one, otherwise heuristics over whitespace tokens.
func FieldsFromLine(line string) (record.Fields, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	if strings.HasPrefix(line, "{") {
		if v, ok := decodeJSON(line); ok {
			if obj, ok := v.(map[string]any); ok {
				return record.FieldsOf(obj), true
			}
		}
	}
	return fieldsFromText(line)
}

func fieldsFromText(line string) (record.Fields, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, false
	}

	fields := record.Fields{"raw": record.String(line)}

	tsIndex := -1
	if len(tokens[0]) > timestampTokenMin {
		tsIndex = 0
		fields["timestamp"] = record.String(tokens[0])
	}

	var query, ip, qtype string
	for i, tok := range tokens {
		// A long leading token is still a query candidate unless it is a dated timestamp
		if i == tsIndex && datePrefix.MatchString(tok) {
			continue
		}
		if ip == "" {
			if m := ipv4Pattern.FindStringSubmatch(tok); m != nil {
				ip = m[1]
				continue
			}
		}
		if qtype == "" {
			if _, ok := recordTypes[strings.ToUpper(tok)]; ok {
				qtype = strings.ToUpper(tok)
				continue
			}
		}
		if query == "" {
			if name := strings.Trim(tok, `()[]<>"',;:`); isQueryName(name) {
				query = name
			}
		}
	}

	if query == "" {
		return nil, false
	}
	fields["query"] = record.String(query)
	if ip != "" {
		fields["sourceIp"] = record.String(ip)
	}
	if qtype == "" {
		qtype = "A"
	}
	fields["type"] = record.String(qtype)

	return fields, true
}

// isQueryName accepts tokens with a dot that are not purely numeric.
// Clock times, IPv6 addresses, paths and handles are rejected, so this is
// stricter than taking the first dotted token: "12:00:01.5" and
// "/var/log/a.log" never become queries.
func isQueryName(tok string) bool {
	if !strings.Contains(tok, ".") || strings.ContainsAny(tok, ":/@") {
		return false
	}
	if strings.Trim(tok, "0123456789.") == "" {
		return false
	}
	return !ipv4Pattern.MatchString(tok)
}

// isHeaderRow reports whether tokens name columns. This deliberately goes
// beyond matching a hint anywhere in the row: rows carrying a query name or
// an address are data even when a value such as NXDOMAIN contains a hint.
func isHeaderRow(tokens []string) bool {
	for _, tok := range tokens {
		if isQueryName(tok) || ipv4Pattern.MatchString(tok) {
			return false
		}
	}
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		for _, hint := range headerHints {
			if strings.Contains(lower, hint) {
				return true
			}
		}
	}
	return false
}

// splitCSVLine splits on commas and strips surrounding quotes from each field
func splitCSVLine(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"'`)
	}
	return parts
}

func hasText(f record.Fields, key string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	s, ok := v.Text()
	return ok && strings.TrimSpace(s) != ""
}

// decodeJSON decodes s as exactly one JSON value, keeping numbers as text
func decodeJSON(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Reject trailing content such as a second line-delimited object
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}
