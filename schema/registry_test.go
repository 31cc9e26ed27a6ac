package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinRegistry(t *testing.T) {
	reg, err := BuiltinRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		ExercisePackV1,
		HintPackV1,
		LessonPlanV1,
		LessonSectionV1,
		ReviewReportV1,
		ScaffoldV1,
		StarterSectionV1,
		TestSectionV1,
	}, reg.Names())
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", String()))

	err := reg.Register("a", String())
	assert.ErrorContains(t, err, "already registered")

	assert.Error(t, reg.Register("  ", String()))
	assert.Error(t, reg.Register("bad", JSON{Type: Types{"nope"}}))

	_, ok := reg.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note_v1.json"),
		[]byte(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"],"additionalProperties":false}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644))

	reg := NewRegistry()
	require.NoError(t, reg.LoadDir(dir))
	assert.Equal(t, []string{"note_v1"}, reg.Names())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0o644))
	assert.ErrorContains(t, NewRegistry().LoadDir(dir), "parse schema broken")
}

func TestRegistryMarshalIndented(t *testing.T) {
	reg, err := BuiltinRegistry()
	require.NoError(t, err)

	data, err := reg.MarshalIndented(StarterSectionV1)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"filePath"`)
	assert.Contains(t, string(data), "\n  ")

	_, err = reg.MarshalIndented("nope")
	assert.ErrorIs(t, err, ErrUnknownSchema)
}

func TestValidatorContracts(t *testing.T) {
	reg, err := BuiltinRegistry()
	require.NoError(t, err)
	v := NewValidator(reg)
	assert.Same(t, reg, v.Registry())

	tests := []struct {
		name     string
		contract string
		payload  map[string]any
		wantOK   bool
		wantErrs []string
	}{
		{
			name:     "starter section",
			contract: StarterSectionV1,
			payload:  map[string]any{"filePath": "main.go", "language": "go", "content": "package main", "isComplete": false, "nextFocus": "add tests"},
			wantOK:   true,
		},
		{
			name:     "starter section missing isComplete",
			contract: StarterSectionV1,
			payload:  map[string]any{"filePath": "main.go", "language": nil, "content": "package main", "nextFocus": nil},
			wantErrs: []string{"$.isComplete: required property is missing"},
		},
		{
			name:     "hint pack",
			contract: HintPackV1,
			payload: map[string]any{
				"contract": "hint_pack_v1",
				"hints": []any{map[string]any{
					"level": float64(1), "text": "Look at the loop bound.", "targetsMisconception": nil,
				}},
				"allowedReveal":        false,
				"fullSolutionProvided": false,
				"solution":             nil,
				"encouragement":        nil,
			},
			wantOK: true,
		},
		{
			name:     "hint pack wrong contract marker and empty hints",
			contract: HintPackV1,
			payload: map[string]any{
				"contract":             "other",
				"hints":                []any{},
				"allowedReveal":        false,
				"fullSolutionProvided": false,
				"solution":             nil,
				"encouragement":        "Keep going.",
			},
			wantErrs: []string{
				`$.contract: value "other" is not one of ["hint_pack_v1", null]`,
				"$.hints: array has 0 items, fewer than minimum 1",
			},
		},
		{
			name:     "review report",
			contract: ReviewReportV1,
			payload: map[string]any{
				"contract":  nil,
				"passFail":  "PASS",
				"score":     float64(88),
				"summary":   "Solid.",
				"findings":  []any{map[string]any{"severity": "minor", "message": "naming", "filePath": "ring.go"}},
				"strengths": nil,
			},
			wantOK: true,
		},
		{
			name:     "review report bad verdict and score",
			contract: ReviewReportV1,
			payload: map[string]any{
				"contract":  "review_report_v1",
				"passFail":  "OK",
				"score":     float64(120),
				"summary":   "x",
				"findings":  []any{},
				"strengths": []any{},
				"extra":     true,
			},
			wantErrs: []string{
				"$.extra: unexpected property",
				`$.passFail: value "OK" is not one of ["PASS", "FAIL"]`,
				"$.score: value 120 is greater than maximum 100",
			},
		},
		{
			name:     "review finding without filePath key",
			contract: ReviewReportV1,
			payload: map[string]any{
				"contract":  nil,
				"passFail":  "FAIL",
				"score":     float64(30),
				"summary":   "Missing wrap handling.",
				"findings":  []any{map[string]any{"severity": "major", "message": "no wrap"}},
				"strengths": nil,
			},
			wantErrs: []string{"$.findings[0].filePath: required property is missing"},
		},
		{
			name:     "scaffold",
			contract: ScaffoldV1,
			payload: map[string]any{
				"exerciseTitle":    "Ring buffer",
				"summary":          "Implement a fixed-size ring buffer.",
				"language":         "go",
				"difficulty":       "intermediate",
				"starterFiles":     []any{map[string]any{"path": "ring.go", "purpose": "buffer"}},
				"testPlan":         []any{map[string]any{"name": "TestWrap", "description": "wraps"}},
				"lessonOutline":    []any{"Intro"},
				"estimatedMinutes": float64(45),
			},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(tt.contract, tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, res.OK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantErrs, res.Errors)
			}
		})
	}
}

func TestBuiltinContractsAreStrict(t *testing.T) {
	reg, err := BuiltinRegistry()
	require.NoError(t, err)
	require.NotEmpty(t, reg.Names())

	for _, name := range reg.Names() {
		t.Run(name, func(t *testing.T) {
			s, ok := reg.Lookup(name)
			require.True(t, ok)
			assert.NoError(t, Lint(name, s))
			assertClosedAndFullyRequired(t, name, s)
		})
	}
}

func assertClosedAndFullyRequired(t *testing.T, path string, s JSON) {
	t.Helper()
	if len(s.Properties) > 0 {
		if assert.NotNil(t, s.AdditionalProperties, "%s: additionalProperties", path) {
			assert.False(t, *s.AdditionalProperties, "%s: additionalProperties", path)
		}
		for key, prop := range s.Properties {
			assert.Contains(t, s.Required, key, "%s: %s not required", path, key)
			assertClosedAndFullyRequired(t, path+"."+key, prop)
		}
	}
	if s.Items != nil {
		assertClosedAndFullyRequired(t, path+"[]", *s.Items)
	}
}

func TestRegistryRejectsLooseSchemas(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register("open", Object(map[string]JSON{"a": String()}, "a"))
	assert.ErrorContains(t, err, "open: additionalProperties must be false")

	err = reg.Register("partial", Object(map[string]JSON{"a": String(), "b": String().Nullable()}, "a").Closed())
	assert.ErrorContains(t, err, "partial: required missing keys: [b]")

	assert.Empty(t, reg.Names())
}

func TestValidatorUnknownSchema(t *testing.T) {
	v := NewValidator(NewRegistry())
	_, err := v.Validate("ghost_v1", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownSchema)
}
