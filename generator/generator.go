// Package generator defines the boundary to the external text generator.
//
// The pipeline only ever sees the Invoker interface: a request goes in and an
// exit code with captured stdout and stderr comes out. Codex implements it by
// running the codex CLI as a non-interactive subprocess; Func adapts a plain
// function so stage logic can be tested without spawning processes.
package generator

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the generator does not finish within its deadline.
var ErrTimeout = errors.New("generator timed out")

// Request is one generator invocation.
type Request struct {
	// Prompt is written to the generator's stdin.
	Prompt string

	// WorkDir scopes the generator's sandbox. Empty uses the process directory.
	WorkDir string

	// SchemaPath, when set, points the generator at a structural output schema.
	SchemaPath string

	// OutputPath, when set, asks the generator to write its final message there.
	OutputPath string

	// Timeout overrides the invoker's default deadline when positive.
	Timeout time.Duration
}

// Response is everything the pipeline knows about a finished invocation.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Invoker runs the generator. A non-zero exit is reported through
// Response.ExitCode, not as an error. Errors mean the generator could not be
// run to completion: it was missing, timed out (ErrTimeout), or ctx ended.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Func adapts an ordinary function to the Invoker interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
