package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		kind     Kind
		text     string
		wantText bool
	}{
		{name: "nil", in: nil, kind: KindNull},
		{name: "string", in: "example.com", kind: KindString, text: "example.com", wantText: true},
		{name: "bool", in: true, kind: KindBool, text: "true", wantText: true},
		{name: "int", in: 53, kind: KindNumber, text: "53", wantText: true},
		{name: "float", in: 1.5, kind: KindNumber, text: "1.5", wantText: true},
		{name: "json number", in: json.Number("16"), kind: KindNumber, text: "16", wantText: true},
		{name: "list", in: []any{"a", 1.0}, kind: KindList},
		{name: "map", in: map[string]any{"k": "v"}, kind: KindMap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValueOf(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			text, ok := v.Text()
			assert.Equal(t, tt.wantText, ok)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestValue_Float(t *testing.T) {
	f, ok := Number("55.75").Float()
	require.True(t, ok)
	assert.InDelta(t, 55.75, f, 1e-9)

	f, ok = String(" 37.61 ").Float()
	require.True(t, ok)
	assert.InDelta(t, 37.61, f, 1e-9)

	_, ok = String("north").Float()
	assert.False(t, ok)

	_, ok = Bool(true).Float()
	assert.False(t, ok)

	for _, text := range []string{"NaN", "Inf", "-Infinity", "1e400"} {
		_, ok = String(text).Float()
		assert.False(t, ok, text)
	}
}

func TestValue_MarshalKeepsMarkup(t *testing.T) {
	out, err := String("client <host> & peer").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"client <host> & peer"`, string(out))

	out, err = List([]Value{String("<a>")}).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["<a>"]`, string(out))
}

func TestValue_JSONRoundTrip(t *testing.T) {
	// Number text survives verbatim, including precision a float64 would lose
	in := `{"big":12345678901234567890,"pi":3.14159,"name":"x","ok":false,"none":null,"list":[1,"two"],"nested":{"a":1}}`

	var m map[string]Value
	require.NoError(t, json.Unmarshal([]byte(in), &m))

	assert.Equal(t, KindNumber, m["big"].Kind())
	text, _ := m["big"].Text()
	assert.Equal(t, "12345678901234567890", text)
	assert.True(t, m["none"].IsNull())
	assert.Len(t, m["list"].Items(), 2)
	assert.Contains(t, m["nested"].Entries(), "a")

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "abc", String("abc").String())
	assert.Equal(t, "42", Number("42").String())
	assert.Equal(t, "", Null().String())
	assert.Equal(t, `["a"]`, List([]Value{String("a")}).String())
}

func TestFieldsOf(t *testing.T) {
	f := FieldsOf(map[string]any{"query": "a.b", "port": 53.0, "z": nil})
	assert.Equal(t, []string{"port", "query", "z"}, f.SortedKeys())
	assert.Equal(t, KindString, f["query"].Kind())
	assert.Equal(t, KindNumber, f["port"].Kind())
	assert.True(t, f["z"].IsNull())
}

func TestRecord_Helpers(t *testing.T) {
	r := &Record{Label: LabelTunneling}
	assert.True(t, r.IsTunneling())
	assert.False(t, r.HasLocation())

	r.Location = LocationResolving
	assert.False(t, r.HasLocation())

	r.Location = "Berlin, Germany"
	assert.True(t, r.HasLocation())
}
