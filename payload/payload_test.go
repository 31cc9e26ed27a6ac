package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBool(t *testing.T) {
	tests := []struct {
		name      string
		m         map[string]any
		wantValue bool
		wantOK    bool
		isTrue    bool
		isFalse   bool
	}{
		{"true", map[string]any{"k": true}, true, true, true, false},
		{"false", map[string]any{"k": false}, false, true, false, true},
		{"missing", map[string]any{}, false, false, false, false},
		{"nil map", nil, false, false, false, false},
		{"nil value", map[string]any{"k": nil}, false, false, false, false},
		{"string true is not bool", map[string]any{"k": "true"}, false, false, false, false},
		{"number is not bool", map[string]any{"k": float64(1)}, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Bool(tt.m, "k")
			assert.Equal(t, tt.wantValue, v)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.isTrue, IsTrue(tt.m, "k"))
			assert.Equal(t, tt.isFalse, IsFalse(tt.m, "k"))
		})
	}
}

func TestString(t *testing.T) {
	m := map[string]any{"s": "x", "blank": "  ", "n": 1}

	s, ok := String(m, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = String(m, "n")
	assert.False(t, ok)

	_, ok = NonEmptyString(m, "blank")
	assert.False(t, ok)

	s, ok = NonEmptyString(m, "s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{"float64", float64(69), 69, true},
		{"int", 70, 70, true},
		{"int64", int64(5), 5, true},
		{"json.Number", json.Number("12.5"), 12.5, true},
		{"string is not coerced", "70", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(map[string]any{"k": tt.value}, "k")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStrings(t *testing.T) {
	m := map[string]any{
		"mixed": []any{"a", 1, "b", nil},
		"typed": []string{"x"},
		"str":   "solo",
	}
	assert.Equal(t, []string{"a", "b"}, Strings(m, "mixed"))
	assert.Equal(t, []string{"x"}, Strings(m, "typed"))
	assert.Nil(t, Strings(m, "str"))
	assert.Nil(t, Strings(nil, "mixed"))
}

func TestMapAndClone(t *testing.T) {
	src := map[string]any{
		"nested": map[string]any{"list": []any{"a", map[string]any{"b": 1}}},
	}
	nested, ok := Map(src, "nested")
	require.True(t, ok)
	assert.Len(t, nested["list"], 2)

	cp := Clone(src)
	assert.Equal(t, src, cp)

	cpNested, _ := Map(cp, "nested")
	cpNested["list"].([]any)[0] = "changed"
	assert.Equal(t, "a", nested["list"].([]any)[0])

	assert.Nil(t, Clone(nil))
	_, ok = Map(src, "missing")
	assert.False(t, ok)
}
