package normalize

// Field is a canonical record field that input keys can resolve to
type Field int

const (
	FieldID Field = iota
	FieldQuery
	FieldSourceIP
	FieldTimestamp
	FieldType
	FieldResponseCode
	FieldLocation
	FieldLat
	FieldLng
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldQuery:
		return "query"
	case FieldSourceIP:
		return "sourceIp"
	case FieldTimestamp:
		return "timestamp"
	case FieldType:
		return "type"
	case FieldResponseCode:
		return "responseCode"
	case FieldLocation:
		return "location"
	case FieldLat:
		return "lat"
	case FieldLng:
		return "lng"
	default:
		return "unknown"
	}
}

// AliasRule maps candidate input keys, in priority order, to one field.
// The first key holding a non-empty scalar wins.
type AliasRule struct {
	Field Field
	Keys  []string
}

// DefaultRules is the alias table applied to every input record
var DefaultRules = []AliasRule{
	{Field: FieldID, Keys: []string{"id", "ID", "uuid"}},
	{Field: FieldQuery, Keys: []string{"query", "domain", "qname", "Question"}},
	{Field: FieldSourceIP, Keys: []string{"sourceIp", "src_ip", "client_ip", "SourceIP"}},
	{Field: FieldTimestamp, Keys: []string{"timestamp", "time", "Timestamp"}},
	{Field: FieldType, Keys: []string{"type", "qtype", "QueryType"}},
	{Field: FieldResponseCode, Keys: []string{"responseCode", "rcode", "ResponseCode"}},
	{Field: FieldLocation, Keys: []string{"location"}},
	{Field: FieldLat, Keys: []string{"lat", "latitude"}},
	{Field: FieldLng, Keys: []string{"lng", "lon", "longitude"}},
}

// aliasKeys returns the set of every key claimed by rules
func aliasKeys(rules []AliasRule) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, rule := range rules {
		for _, k := range rule.Keys {
			keys[k] = struct{}{}
		}
	}
	return keys
}
