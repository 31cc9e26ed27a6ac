// Package payload reads fields from decoded generator output.
//
// Generator payloads arrive as map[string]any after JSON decoding, so numbers
// are float64 and arrays are []any. The accessors here never panic: a missing
// key, a nil value, or a value of the wrong type reports ok=false.
//
// Accessors are strict. A boolean field only counts as true when it decodes to
// the JSON literal true; the string "true" or the number 1 do not. Rules that
// compare against "=== true" in the generator contract rely on this.
//
//	complete, _ := payload.Bool(m, "isComplete")
//	focus, ok := payload.String(m, "nextFocus")
//	score, ok := payload.Number(m, "score")
package payload
