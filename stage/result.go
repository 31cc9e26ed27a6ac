package stage

import (
	"time"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/policy"
)

// Result is the verdict of one stage run. Accepted is true only when the
// generator exited cleanly with parseable JSON that passed both the schema
// and the policy engine. Payload is set only on acceptance; exactly one of
// Details, Errors, or Violations explains a rejection.
type Result struct {
	Accepted   bool               `json:"accepted"`
	Stage      Name               `json:"stage"`
	SchemaName string             `json:"schemaName"`
	PacketID   string             `json:"packetId,omitempty"`
	Payload    map[string]any     `json:"payload,omitempty"`
	Reason     failure.Reason     `json:"reason,omitempty"`
	Details    string             `json:"details,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
	Violations []policy.Violation `json:"violations,omitempty"`

	// RetryAttempt is the 1-based attempt that produced a rejected result
	// returned by the retry controller. Zero means not annotated.
	RetryAttempt int `json:"retryAttempt,omitempty"`

	Duration time.Duration `json:"durationNs,omitempty"`
}

// Rejected returns a rejection with the given reason.
func Rejected(name Name, schemaName string, reason failure.Reason) Result {
	return Result{Stage: name, SchemaName: schemaName, Reason: reason}
}

// Accept returns an accepted result carrying payload.
func Accept(name Name, schemaName string, payload map[string]any) Result {
	return Result{Accepted: true, Stage: name, SchemaName: schemaName, Payload: payload}
}

// RuleIDs returns the identifiers of violated policy rules.
func (r Result) RuleIDs() []string {
	if len(r.Violations) == 0 {
		return nil
	}
	ids := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		ids[i] = v.Rule
	}
	return ids
}
