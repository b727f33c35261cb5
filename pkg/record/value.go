package record

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind identifies which variant a Value holds
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

// Value is a tagged union over the shapes a log field can take.
// Numbers keep their source text so metadata round-trips verbatim.
type Value struct {
	kind Kind
	text string
	b    bool
	list []Value
	m    map[string]Value
}

// Null returns the null Value
func Null() Value { return Value{} }

// String wraps a string
func String(s string) Value { return Value{kind: KindString, text: s} }

// Number wraps the textual form of a number
func Number(text string) Value { return Value{kind: KindNumber, text: text} }

// Float wraps a float64
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Bool wraps a bool
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List wraps a slice of values
func List(items []Value) Value { return Value{kind: KindList, list: items} }

// Map wraps a nested map
func Map(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// ValueOf converts a decoded JSON value (or plain Go scalar) into a Value
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case int:
		return Number(strconv.Itoa(x))
	case int64:
		return Number(strconv.FormatInt(x, 10))
	case uint64:
		return Number(strconv.FormatUint(x, 10))
	case interface {
		Float64() (float64, error)
		String() string
	}:
		// json.Number from either encoding/json or go-json
		return Number(x.String())
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = ValueOf(item)
		}
		return List(items)
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, item := range x {
			m[k] = ValueOf(item)
		}
		return Map(m)
	default:
		return String(fmt.Sprint(x))
	}
}

// FieldsOf converts a decoded JSON object into Fields
func FieldsOf(m map[string]any) Fields {
	fields := make(Fields, len(m))
	for k, v := range m {
		fields[k] = ValueOf(v)
	}
	return fields
}

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null variant
func (v Value) IsNull() bool { return v.kind == KindNull }

// Text returns the scalar text of v. Null, list and map values have no text.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString, KindNumber:
		return v.text, true
	case KindBool:
		return strconv.FormatBool(v.b), true
	default:
		return "", false
	}
}

// Float returns v as a float64 when it is a number or numeric text.
// NaN and infinities are not numbers here.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber && v.kind != KindString {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Items returns the elements of a list value
func (v Value) Items() []Value { return v.list }

// Entries returns the entries of a map value
func (v Value) Entries() map[string]Value { return v.m }

// Interface converts v back into plain Go values
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.text
	case KindNumber:
		if json.Valid([]byte(v.text)) {
			return json.Number(v.text)
		}
		return v.text
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes v in its natural JSON form. Markup in strings is
// left as is; raw log lines often carry '<' and '&'.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		if json.Valid([]byte(v.text)) {
			return []byte(v.text), nil
		}
		return json.MarshalWithOption(v.text, json.DisableHTMLEscape())
	}
	return json.MarshalWithOption(v.Interface(), json.DisableHTMLEscape())
}

// UnmarshalJSON decodes any JSON value into v
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// String renders v for logs and flat exports
func (v Value) String() string {
	if s, ok := v.Text(); ok {
		return s
	}
	switch v.kind {
	case KindList, KindMap:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// SortedKeys returns the keys of f in lexical order
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
