package canon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"nested", map[string]any{"a": []any{1, "x", nil}}, `{"a":[1,"x",null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	got, err := Marshal(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(got))
}

func TestMarshalStructFieldsSorted(t *testing.T) {
	type record struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	got, err := Marshal(record{Name: "Ada", Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, `{"email":"a@b.c","name":"Ada"}`, string(got))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before 0xE000 in UTF-16 but after it in UTF-8.
	got, err := Marshal(map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(got))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	got, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalLineSeparatorsLiteral(t *testing.T) {
	got, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))
}

func TestMarshalControlCharacters(t *testing.T) {
	got, err := Marshal("tab\there\nnew\x01")
	require.NoError(t, err)
	assert.Equal(t, `"tab\there\nnew\u0001"`, string(got))
}

func TestMarshalNFC(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	got, err := Marshal("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(got))
}

func TestCanonicalizePreservesNumbers(t *testing.T) {
	got, err := Canonicalize([]byte(`{"b": 1.50, "a": 12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":12345678901234567890,"b":1.50}`, string(got))
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	_, err := Canonicalize([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestMarshalUnsupported(t *testing.T) {
	_, err := Marshal(make(chan int))
	assert.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	got, err := MarshalIndent(map[string]any{"b": 1, "a": []any{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    \"x\"\n  ],\n  \"b\": 1\n}", string(got))
}

func TestMarshalDeterministic(t *testing.T) {
	input := map[string]any{"k3": 3, "k1": 1, "k2": json.Number("2")}
	first, err := Marshal(input)
	require.NoError(t, err)
	for range 20 {
		again, err := Marshal(input)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompareKeys(t *testing.T) {
	assert.Equal(t, 0, CompareKeys("a", "a"))
	assert.Equal(t, -1, CompareKeys("a", "b"))
	assert.Equal(t, 1, CompareKeys("ab", "a"))
	assert.Equal(t, -1, CompareKeys("\U00010000", "\uE000"))
}
