package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonFencePattern matches a markdown code fence labelled exactly json:
// ```json ... ```. The label must be followed by whitespace, so ```jsonc and
// ```json5 fences are not mistaken for it.
var jsonFencePattern = regexp.MustCompile("(?s)```[ \\t]*(?i:json)(?:[ \\t]*\\r?\\n|[ \\t]+)(.*?)```")

// ExtractJSON recovers a single JSON object from generator output that may be
// wrapped in a markdown fence or followed by prose.
//
// The order of preference is:
//  1. the trimmed interior of the first ```json fence
//  2. the balanced object starting at the first '{', with trailing text dropped
//  3. everything from the first '{' onward, trimmed, when braces never balance
//
// Input that is already a complete JSON document is returned trimmed, so
// arrays and scalars survive a round trip. Input without any '{' is also
// returned trimmed. ExtractJSON never fails; the
// caller's JSON decoder reports whatever is still wrong with the candidate.
func ExtractJSON(raw string) string {
	if m := jsonFencePattern.FindStringSubmatch(raw); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return trimmed
	}

	if end := balancedEnd(raw, start); end > 0 {
		return raw[start:end]
	}
	return strings.TrimSpace(raw[start:])
}

// balancedEnd walks from the '{' at start and returns the index just past the
// '}' that closes it, or -1 if the braces never balance. Braces inside string
// literals are ignored, honoring backslash escapes.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
