package schema

import "fmt"

// Result is the outcome of validating a payload against a named schema.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Validator checks payloads against schemas from an injected Registry.
type Validator struct {
	registry *Registry
}

// NewValidator creates a validator backed by registry.
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Registry returns the registry the validator reads from.
func (v *Validator) Registry() *Registry {
	return v.registry
}

// Validate checks payload against the schema registered as name and reports
// every violation. An unregistered name is a caller bug and returns
// ErrUnknownSchema rather than a failed Result.
func (v *Validator) Validate(name string, payload any) (Result, error) {
	s, ok := v.registry.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	errs := s.Check(payload)
	return Result{OK: len(errs) == 0, Errors: errs}, nil
}
