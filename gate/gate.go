// Package gate is the only sanctioned path from a stage result to caller
// state. Accept hands back the payload of an accepted result and turns every
// rejection into a *RejectionError that carries the full result.
package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// RejectionError reports a stage result that did not pass the gate.
type RejectionError struct {
	Result stage.Result
	Label  string
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("stage %s rejected: %s", e.Result.Stage, e.Result.Reason.Normalize())
	if e.Label != "" {
		msg = e.Label + ": " + msg
	}
	if detail := summary(e.Result); detail != "" {
		msg += " (" + detail + ")"
	}
	return msg
}

// Reason returns the normalized rejection reason.
func (e *RejectionError) Reason() failure.Reason {
	return e.Result.Reason.Normalize()
}

// Accept returns the payload of an accepted result. Any other result yields
// a *RejectionError labelled with label.
func Accept(res stage.Result, label string) (map[string]any, error) {
	if !res.Accepted {
		return nil, &RejectionError{Result: res, Label: label}
	}
	return res.Payload, nil
}

// AcceptInto passes res through the gate and decodes its payload into T.
func AcceptInto[T any](res stage.Result, label string) (T, error) {
	payload, err := Accept(res, label)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](payload, label)
}

// Decode converts a payload returned by Accept into T.
func Decode[T any](payload map[string]any, label string) (T, error) {
	var out T
	data, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("%s: encode payload: %w", label, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%s: decode payload: %w", label, err)
	}
	return out, nil
}

// IsAccepted reports whether res may pass the gate.
func IsAccepted(res stage.Result) bool {
	return res.Accepted
}

// AsRejection extracts a *RejectionError from err's chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// MachineError is the stable shape of a rejection for machine consumers.
type MachineError struct {
	Error      string             `json:"error"`
	SchemaName string             `json:"schemaName"`
	Violations []policy.Violation `json:"violations"`
	Errors     []string           `json:"errors"`
	Detail     string             `json:"detail"`
}

// ToMachineError maps a rejected result to a MachineError. Lists are never
// nil so consumers always see arrays.
func ToMachineError(res stage.Result) MachineError {
	m := MachineError{
		Error:      string(res.Reason.Normalize()),
		SchemaName: res.SchemaName,
		Violations: res.Violations,
		Errors:     res.Errors,
		Detail:     res.Details,
	}
	if m.Violations == nil {
		m.Violations = []policy.Violation{}
	}
	if m.Errors == nil {
		m.Errors = []string{}
	}
	return m
}

func summary(res stage.Result) string {
	switch {
	case len(res.Violations) > 0:
		return fmt.Sprintf("%d policy violations, first: %s", len(res.Violations), res.Violations[0].Rule)
	case len(res.Errors) > 0:
		return fmt.Sprintf("%d schema errors, first: %s", len(res.Errors), res.Errors[0])
	case res.Details != "":
		line, _, _ := strings.Cut(res.Details, "\n")
		return line
	default:
		return ""
	}
}
