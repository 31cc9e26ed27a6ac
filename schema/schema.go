package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Types is the set of JSON types a schema node accepts. It unmarshals from
// either a single type name ("string") or a list (["string", "null"]).
type Types []string

// UnmarshalJSON accepts a string or an array of strings.
func (t *Types) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = Types{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or an array of strings: %w", err)
	}
	*t = Types(many)
	return nil
}

// MarshalJSON emits a bare string for a single type.
func (t Types) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// allows reports whether a value of the normalized kind satisfies the type set.
// "integer" accepts any number with no fractional part.
func (t Types) allows(kind string, value any) bool {
	for _, name := range t {
		switch {
		case name == kind:
			return true
		case name == "integer" && kind == "number":
			if f, ok := toFloat(value); ok && !math.IsInf(f, 0) && f == math.Trunc(f) {
				return true
			}
		}
	}
	return false
}

// JSON represents a JSON Schema node. It covers the subset of the standard
// used by stage output contracts.
type JSON struct {
	Type                 Types           `json:"type,omitempty"`
	Description          string          `json:"description,omitempty"`
	Properties           map[string]JSON `json:"properties,omitempty"`
	Required             []string        `json:"required,omitempty"`
	AdditionalProperties *bool           `json:"additionalProperties,omitempty"`
	Items                *JSON           `json:"items,omitempty"`
	MinItems             *int            `json:"minItems,omitempty"`
	Enum                 []any           `json:"enum,omitempty"`
	// Const pins the value exactly. A nil Const means no constraint, so
	// `"const": null` cannot be expressed.
	Const     any      `json:"const,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// Any creates a schema that accepts any value.
func Any() JSON {
	return JSON{}
}

// String creates a schema for a string.
func String() JSON {
	return JSON{Type: Types{"string"}}
}

// Int creates a schema for an integer.
func Int() JSON {
	return JSON{Type: Types{"integer"}}
}

// Number creates a schema for a number.
func Number() JSON {
	return JSON{Type: Types{"number"}}
}

// Bool creates a schema for a boolean.
func Bool() JSON {
	return JSON{Type: Types{"boolean"}}
}

// Array creates an array schema with the given item schema.
func Array(items JSON) JSON {
	return JSON{Type: Types{"array"}, Items: &items}
}

// Object creates an object schema with properties and required keys.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{
		Type:       Types{"object"},
		Properties: properties,
		Required:   required,
	}
}

// Enum creates a schema restricted to the given values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// Const creates a schema that only accepts v.
func Const(v any) JSON {
	return JSON{Const: v}
}

// Closed returns a copy of an object schema that rejects undeclared properties.
func (s JSON) Closed() JSON {
	closed := false
	s.AdditionalProperties = &closed
	return s
}

// Nullable returns a copy of the schema that also accepts null.
func (s JSON) Nullable() JSON {
	s.Type = append(append(Types{}, s.Type...), "null")
	return s
}

// WithMinItems returns a copy of an array schema requiring at least n items.
func (s JSON) WithMinItems(n int) JSON {
	s.MinItems = &n
	return s
}

// WithRange returns a copy of a numeric schema bounded inclusively by min and max.
func (s JSON) WithRange(min, max float64) JSON {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// Validate returns nil when value satisfies the schema, or a *ValidationError
// listing every violation found.
func (s JSON) Validate(value any) error {
	if errs := s.Check(value); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Check returns every violation of the schema found in value. Each message is
// prefixed with the location of the offending field, rooted at "$".
func (s JSON) Check(value any) []string {
	var errs []string
	s.check(value, "$", &errs)
	return errs
}

// ValidationError carries all violations from one validation pass.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// check validates in fixed precedence: const, type, enum, numeric bounds,
// string constraints, object members, array items.
func (s JSON) check(value any, path string, errs *[]string) {
	add := func(p, format string, args ...any) {
		*errs = append(*errs, p+": "+fmt.Sprintf(format, args...))
	}

	if s.Const != nil {
		if !equalValues(value, s.Const) {
			add(path, "expected constant %v, got %v", display(s.Const), display(value))
		}
		return
	}

	kind := kindOf(value)
	if len(s.Type) > 0 && !s.Type.allows(kind, value) {
		add(path, "expected %s, got %s", strings.Join(s.Type, " or "), kind)
		return
	}

	if len(s.Enum) > 0 && !s.inEnum(value) {
		add(path, "value %v is not one of %v", display(value), displayAll(s.Enum))
	}

	if kind == "number" {
		f, _ := toFloat(value)
		if s.Minimum != nil && f < *s.Minimum {
			add(path, "value %v is less than minimum %v", f, *s.Minimum)
		}
		if s.Maximum != nil && f > *s.Maximum {
			add(path, "value %v is greater than maximum %v", f, *s.Maximum)
		}
	}

	if str, ok := value.(string); ok {
		if s.MinLength != nil && len(str) < *s.MinLength {
			add(path, "string length %d is less than minimum %d", len(str), *s.MinLength)
		}
		if s.MaxLength != nil && len(str) > *s.MaxLength {
			add(path, "string length %d is greater than maximum %d", len(str), *s.MaxLength)
		}
		if s.Pattern != "" {
			re, err := regexp.Compile(s.Pattern)
			switch {
			case err != nil:
				add(path, "invalid pattern %q: %v", s.Pattern, err)
			case !re.MatchString(str):
				add(path, "string does not match pattern %s", s.Pattern)
			}
		}
	}

	switch kind {
	case "object":
		s.checkObject(value, path, errs)
	case "array":
		s.checkArray(value, path, errs)
	}
}

func (s JSON) checkObject(value any, path string, errs *[]string) {
	obj, err := toMap(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", path, err))
		return
	}

	for _, key := range s.Required {
		if _, ok := obj[key]; !ok {
			*errs = append(*errs, childPath(path, key)+": required property is missing")
		}
	}

	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if prop, ok := s.Properties[key]; ok {
			prop.check(obj[key], childPath(path, key), errs)
			continue
		}
		if s.AdditionalProperties != nil && !*s.AdditionalProperties {
			*errs = append(*errs, childPath(path, key)+": unexpected property")
		}
	}
}

func (s JSON) checkArray(value any, path string, errs *[]string) {
	v := reflect.ValueOf(value)
	if s.MinItems != nil && v.Len() < *s.MinItems {
		*errs = append(*errs, fmt.Sprintf("%s: array has %d items, fewer than minimum %d", path, v.Len(), *s.MinItems))
	}
	if s.Items == nil {
		return
	}
	for i := 0; i < v.Len(); i++ {
		s.Items.check(v.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i), errs)
	}
}

func (s JSON) inEnum(value any) bool {
	for _, allowed := range s.Enum {
		if equalValues(value, allowed) {
			return true
		}
	}
	return false
}

func childPath(parent, key string) string {
	return parent + "." + key
}

// kindOf normalizes a Go value to a JSON type name. Arrays and null are
// distinct from object.
func kindOf(value any) string {
	if value == nil {
		return "null"
	}
	if _, ok := value.(json.Number); ok {
		return "number"
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return "null"
		}
		return kindOf(v.Elem().Interface())
	default:
		return v.Kind().String()
	}
}

func toFloat(value any) (float64, bool) {
	if n, ok := value.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

func toMap(value any) (map[string]any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object: %w", err)
	}
	return m, nil
}

// equalValues compares two decoded JSON values, treating numbers by value
// regardless of their Go type.
func equalValues(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func display(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}

func displayAll(vs []any) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = display(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ErrUnknownSchema is returned when a schema name is not registered.
var ErrUnknownSchema = errors.New("unknown schema")
