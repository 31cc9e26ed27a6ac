package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// maxLineSize bounds a single newline-delimited record. Audit entries embed
// raw generator stderr, which easily exceeds bufio's 64KiB default.
const maxLineSize = 8 << 20

// ParseJSONLines parses newline-delimited JSON using generics.
// Blank lines are skipped.
func ParseJSONLines[T any](data []byte) ([]T, error) {
	var results []T
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		results = append(results, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSON lines: %w", err)
	}

	return results, nil
}

// DecodeOutput extracts the JSON candidate from raw generator output and
// decodes it into generic JSON values.
func DecodeOutput(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &v); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w", err)
	}
	return v, nil
}
