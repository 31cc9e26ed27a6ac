package failure

// Class groups rejection reasons by how a caller should react to them.
type Class string

const (
	// ClassExecution covers failures of the generator process itself.
	// These are transient from the pipeline's point of view.
	ClassExecution Class = "execution"

	// ClassSchema covers output that did not parse or broke its structural contract.
	ClassSchema Class = "schema"

	// ClassPolicy covers output that broke a business rule.
	ClassPolicy Class = "policy"

	// ClassUnknown covers anything the taxonomy does not recognize.
	ClassUnknown Class = "unknown"
)

// ClassOf returns the class for a rejection reason.
func ClassOf(reason Reason) Class {
	switch reason {
	case ReasonExecutionFailed, ReasonTimeout:
		return ClassExecution
	case ReasonSchemaValidationFailed:
		return ClassSchema
	case ReasonPolicyViolation:
		return ClassPolicy
	default:
		return ClassUnknown
	}
}

// Retryable reports whether a failure of this class may succeed on re-invocation.
func (c Class) Retryable() bool {
	return c == ClassExecution
}

// IsRetryable is shorthand for ClassOf(reason).Retryable().
func IsRetryable(reason Reason) bool {
	return ClassOf(reason).Retryable()
}
