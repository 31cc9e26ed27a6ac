package schema_test

import (
	"fmt"

	"github.com/zero-day-ai/exercise-forge/schema"
)

func Example() {
	section := schema.Object(map[string]schema.JSON{
		"filePath":   schema.String(),
		"content":    schema.String(),
		"isComplete": schema.Bool(),
	}, "filePath", "content", "isComplete").Closed()

	err := section.Validate(map[string]any{
		"filePath": "main.go",
		"content":  "package main",
	})
	fmt.Println(err)

	// Output: $.isComplete: required property is missing
}

func ExampleValidator_Validate() {
	reg, err := schema.BuiltinRegistry()
	if err != nil {
		panic(err)
	}
	v := schema.NewValidator(reg)

	res, err := v.Validate(schema.LessonSectionV1, map[string]any{
		"sectionTitle": "Why buffers wrap",
		"content":      "A ring buffer reuses storage...",
		"keyTerms":     []any{"ring buffer"},
		"isComplete":   true,
		"nextFocus":    nil,
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(res.OK)

	// Output: true
}
