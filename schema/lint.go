package schema

import (
	"fmt"
	"sort"
)

var knownTypes = map[string]bool{
	"string": true, "integer": true, "number": true, "boolean": true,
	"array": true, "object": true, "null": true,
}

// Lint checks that a schema is internally consistent and strict enough to be
// handed to a generator as an output contract: type names are known, array
// bounds are non-negative, minimum does not exceed maximum, and every object
// that lists properties is closed with additionalProperties false and requires
// every property it declares. Optional fields are expressed as nullable types
// rather than by leaving them out of required.
func Lint(name string, s JSON) error {
	return lintNode(s, name)
}

func lintNode(s JSON, path string) error {
	for _, t := range s.Type {
		if !knownTypes[t] {
			return fmt.Errorf("%s: unknown type %q", path, t)
		}
	}

	if len(s.Properties) > 0 {
		if s.AdditionalProperties == nil || *s.AdditionalProperties {
			return fmt.Errorf("%s: additionalProperties must be false", path)
		}
		required := make(map[string]bool, len(s.Required))
		for _, key := range s.Required {
			if _, ok := s.Properties[key]; !ok {
				return fmt.Errorf("%s: required key %q is not declared in properties", path, key)
			}
			required[key] = true
		}
		var missing []string
		for key := range s.Properties {
			if !required[key] {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%s: required missing keys: %v", path, missing)
		}
	}

	if s.MinItems != nil && *s.MinItems < 0 {
		return fmt.Errorf("%s: minItems must be non-negative", path)
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return fmt.Errorf("%s: minimum %v exceeds maximum %v", path, *s.Minimum, *s.Maximum)
	}

	keys := make([]string, 0, len(s.Properties))
	for key := range s.Properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := lintNode(s.Properties[key], path+".properties."+key); err != nil {
			return err
		}
	}
	if s.Items != nil {
		if err := lintNode(*s.Items, path+".items"); err != nil {
			return err
		}
	}
	return nil
}
