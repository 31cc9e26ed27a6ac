package forge

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for pipeline failures that are not stage rejections.
// Rejections surface as *gate.RejectionError instead.
var (
	// ErrInvalidPacket indicates a context packet failed required-field
	// validation. The wrapped *packet.ValidationError lists the missing paths.
	ErrInvalidPacket = errors.New("invalid context packet")

	// ErrInvalidConfig indicates the pipeline was assembled with missing or
	// inconsistent options.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAuditWrite indicates a rejection could not be appended to the audit log.
	ErrAuditWrite = errors.New("audit write failed")
)

// Error kinds categorize pipeline errors.
const (
	// KindValidation covers malformed packets and unknown stage names.
	KindValidation = "validation"

	// KindExecution covers faults while a stage or loop was running, including
	// cancellation and stage rejections.
	KindExecution = "execution"

	// KindConfiguration covers invalid pipeline options.
	KindConfiguration = "configuration"

	// KindInternal covers faults in the pipeline's own durable state.
	KindInternal = "internal"
)

// Error wraps an underlying error with the pipeline operation that failed
// and a kind.
//
// Error supports errors.Is and errors.As through Unwrap. A target *Error
// matches when its Kind (and Op, if set) match.
type Error struct {
	// Op is the operation that failed, e.g. "Pipeline.RunStage".
	Op string

	// Kind is one of the Kind constants.
	Kind string

	// Err is the underlying error.
	Err error

	// Context carries identifiers useful for debugging, e.g. the stage name.
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("forge: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("forge: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("forge: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind && (t.Op == "" || e.Op == t.Op) {
			return true
		}
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into its context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	out := *e
	out.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		out.Context[k] = v
	}
	for k, v := range ctx {
		out.Context[k] = v
	}
	return &out
}

// NewValidationError creates an Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewExecutionError creates an Error with KindExecution.
func NewExecutionError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindExecution, Err: err}
}

// NewConfigurationError creates an Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewInternalError creates an Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog closes closer and logs any error at warning level. It is meant
// for defer statements. If logger is nil, slog.Default() is used.
//
//	defer forge.CloseWithLog(mirror, logger, "audit mirror")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
