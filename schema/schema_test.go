package schema

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypesUnmarshal(t *testing.T) {
	var s JSON
	require.NoError(t, json.Unmarshal([]byte(`{"type":"string"}`), &s))
	assert.Equal(t, Types{"string"}, s.Type)

	require.NoError(t, json.Unmarshal([]byte(`{"type":["string","null"]}`), &s))
	assert.Equal(t, Types{"string", "null"}, s.Type)

	assert.Error(t, json.Unmarshal([]byte(`{"type":42}`), &s))
}

func TestTypesMarshal(t *testing.T) {
	data, err := json.Marshal(String())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"string"}`, string(data))

	data, err = json.Marshal(String().Nullable())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":["string","null"]}`, string(data))
}

func TestPrimitiveTypes(t *testing.T) {
	tests := []struct {
		name   string
		schema JSON
		value  any
		valid  bool
	}{
		{"string accepts string", String(), "hello", true},
		{"string rejects number", String(), 12, false},
		{"bool accepts bool", Bool(), true, true},
		{"bool rejects string", Bool(), "true", false},
		{"integer accepts whole float", Int(), float64(3), true},
		{"integer rejects fraction", Int(), 3.5, false},
		{"integer accepts int", Int(), 7, true},
		{"integer accepts whole float beyond int64", Int(), 1e20, true},
		{"integer rejects infinity", Int(), math.Inf(1), false},
		{"number accepts fraction", Number(), 3.5, true},
		{"number rejects null", Number(), nil, false},
		{"nullable accepts null", String().Nullable(), nil, true},
		{"any accepts anything", Any(), []any{1, "x"}, true},
		{"array rejects object", Array(String()), map[string]any{}, false},
		{"object rejects array", Object(nil), []any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate(tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRequiredMissingPath(t *testing.T) {
	s := Object(map[string]JSON{
		"name": String(),
		"age":  Int(),
	}, "name", "age")

	errs := s.Check(map[string]any{"name": "a"})
	assert.Equal(t, []string{"$.age: required property is missing"}, errs)
}

func TestClosedObjectRejectsUnknownKeys(t *testing.T) {
	s := Object(map[string]JSON{"a": String()}, "a").Closed()

	errs := s.Check(map[string]any{"a": "x", "z": 1, "b": 2})
	assert.Equal(t, []string{
		"$.b: unexpected property",
		"$.z: unexpected property",
	}, errs)

	open := Object(map[string]JSON{"a": String()}, "a")
	assert.Empty(t, open.Check(map[string]any{"a": "x", "z": 1}))
}

func TestNestedArrayPaths(t *testing.T) {
	hint := Object(map[string]JSON{
		"level": Int().WithRange(1, 3),
		"text":  String(),
	}, "level", "text")
	s := Object(map[string]JSON{
		"hints": Array(hint).WithMinItems(1),
	}, "hints")

	errs := s.Check(map[string]any{
		"hints": []any{
			map[string]any{"level": float64(1), "text": "ok"},
			map[string]any{"level": float64(5)},
		},
	})
	assert.ElementsMatch(t, []string{
		"$.hints[1].text: required property is missing",
		"$.hints[1].level: value 5 is greater than maximum 3",
	}, errs)

	errs = s.Check(map[string]any{"hints": []any{}})
	assert.Equal(t, []string{"$.hints: array has 0 items, fewer than minimum 1"}, errs)
}

func TestEnumAndConst(t *testing.T) {
	verdict := Enum("PASS", "FAIL")
	assert.NoError(t, verdict.Validate("PASS"))
	assert.EqualError(t, verdict.Validate("MAYBE"), `$: value "MAYBE" is not one of ["PASS", "FAIL"]`)

	c := Const("hint_pack_v1")
	assert.NoError(t, c.Validate("hint_pack_v1"))
	assert.Error(t, c.Validate("review_report_v1"))

	// Numeric enums compare by value across Go numeric types.
	levels := Enum(1, 2, 3)
	assert.NoError(t, levels.Validate(float64(2)))
}

func TestStringConstraints(t *testing.T) {
	minLen, maxLen := 2, 4
	s := JSON{Type: Types{"string"}, MinLength: &minLen, MaxLength: &maxLen, Pattern: "^[a-z]+$"}

	assert.NoError(t, s.Validate("abc"))
	assert.Error(t, s.Validate("a"))
	assert.Error(t, s.Validate("abcde"))
	assert.Error(t, s.Validate("AB"))

	bad := JSON{Type: Types{"string"}, Pattern: "("}
	errs := bad.Check("x")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid pattern")
}

func TestStructValues(t *testing.T) {
	type section struct {
		FilePath   string `json:"filePath"`
		IsComplete bool   `json:"isComplete"`
	}
	s := Object(map[string]JSON{
		"filePath":   String(),
		"isComplete": Bool(),
	}, "filePath", "isComplete").Closed()

	assert.NoError(t, s.Validate(section{FilePath: "main.go", IsComplete: true}))
	assert.NoError(t, s.Validate(&section{FilePath: "main.go"}))
}

func TestValidationErrorJoinsMessages(t *testing.T) {
	s := Object(map[string]JSON{"a": String(), "b": Int()}, "a", "b")
	err := s.Validate(map[string]any{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 2)
	assert.Equal(t, "$.a: required property is missing; $.b: required property is missing", err.Error())
}

func TestLint(t *testing.T) {
	tests := []struct {
		name    string
		schema  JSON
		wantErr string
	}{
		{
			name:   "valid",
			schema: Object(map[string]JSON{"a": String(), "b": Int().Nullable()}, "a", "b").Closed(),
		},
		{
			name:   "nested valid",
			schema: Object(map[string]JSON{"xs": Array(Object(map[string]JSON{"a": String()}, "a").Closed())}, "xs").Closed(),
		},
		{
			name:    "unknown type",
			schema:  JSON{Type: Types{"text"}},
			wantErr: `unknown type "text"`,
		},
		{
			name:    "undeclared required",
			schema:  Object(map[string]JSON{"a": String()}, "a", "b").Closed(),
			wantErr: `required key "b" is not declared`,
		},
		{
			name:    "inverted range",
			schema:  Number().WithRange(10, 1),
			wantErr: "minimum 10 exceeds maximum 1",
		},
		{
			name:    "negative minItems",
			schema:  Array(String()).WithMinItems(-1),
			wantErr: "minItems must be non-negative",
		},
		{
			name:    "open object",
			schema:  Object(map[string]JSON{"a": String()}, "a"),
			wantErr: "t: additionalProperties must be false",
		},
		{
			name: "explicitly open object",
			schema: func() JSON {
				open := true
				s := Object(map[string]JSON{"a": String()}, "a")
				s.AdditionalProperties = &open
				return s
			}(),
			wantErr: "additionalProperties must be false",
		},
		{
			name:    "optional property left out of required",
			schema:  Object(map[string]JSON{"a": String(), "c": String().Nullable(), "b": Int()}, "a").Closed(),
			wantErr: "t: required missing keys: [b c]",
		},
		{
			name: "nested object not fully required",
			schema: Object(map[string]JSON{
				"hints": Array(Object(map[string]JSON{"level": Int(), "text": String()}, "level").Closed()),
			}, "hints").Closed(),
			wantErr: "t.properties.hints.items: required missing keys: [text]",
		},
		{
			name: "nested failure",
			schema: Object(map[string]JSON{
				"items": Array(JSON{Type: Types{"bogus"}}),
			}, "items").Closed(),
			wantErr: "t.properties.items.items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Lint("t", tt.schema)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
