// Package schema defines JSON Schema nodes, the registry of stage output
// contracts, and the validator that checks generator payloads against them.
//
// Only the subset of JSON Schema that stage contracts use is supported:
// type (single or union), properties, required, additionalProperties,
// items, minItems, enum, const, minimum, maximum, minLength, maxLength, and
// pattern.
//
// # Contracts
//
// Every stage output contract ships as an embedded JSON file and is loaded
// into a Registry at startup:
//
//	reg, err := schema.BuiltinRegistry()
//	if err != nil {
//		return err
//	}
//	v := schema.NewValidator(reg)
//	res, err := v.Validate(schema.HintPackV1, payload)
//
// Validate reports every violation it finds, each prefixed with a path rooted
// at "$" such as "$.hints[0].level". An unregistered contract name returns
// ErrUnknownSchema.
//
// # Building schemas in code
//
//	section := schema.Object(map[string]schema.JSON{
//		"filePath":   schema.String(),
//		"content":    schema.String(),
//		"isComplete": schema.Bool(),
//	}, "filePath", "content", "isComplete").Closed()
//
// Registry.Register lints a schema before accepting it, so inconsistent
// definitions fail at startup instead of at validation time. Contracts are
// strict: every object that declares properties must set
// additionalProperties to false and list every property in required. A field
// the generator may leave empty is declared nullable and sent as null:
//
//	"nextFocus": {"type": ["string", "null"]}
package schema
