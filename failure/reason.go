package failure

// Reason identifies why a stage result was rejected.
type Reason string

// Closed set of rejection reasons.
const (
	// ReasonNone is the zero value carried by accepted results.
	ReasonNone Reason = ""

	// ReasonExecutionFailed indicates the generator exited non-zero or could not be started.
	ReasonExecutionFailed Reason = "EXECUTION_FAILED"

	// ReasonTimeout indicates the generator did not finish within its deadline.
	ReasonTimeout Reason = "TIMEOUT"

	// ReasonSchemaValidationFailed indicates the output was unparsable or broke its schema.
	ReasonSchemaValidationFailed Reason = "SCHEMA_VALIDATION_FAILED"

	// ReasonPolicyViolation indicates a structurally valid payload broke a business rule.
	ReasonPolicyViolation Reason = "POLICY_VIOLATION"

	// ReasonUnknown is the catch-all for results without a recognized reason.
	ReasonUnknown Reason = "UNKNOWN"
)

// Known reports whether r is one of the non-empty reasons in the taxonomy.
func (r Reason) Known() bool {
	switch r {
	case ReasonExecutionFailed, ReasonTimeout, ReasonSchemaValidationFailed,
		ReasonPolicyViolation, ReasonUnknown:
		return true
	default:
		return false
	}
}

// Normalize maps unrecognized reasons, including the empty reason, to ReasonUnknown.
func (r Reason) Normalize() Reason {
	if r.Known() {
		return r
	}
	return ReasonUnknown
}

func (r Reason) String() string {
	return string(r)
}
