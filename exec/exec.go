// Package exec runs the external generator process. It wraps os/exec with a
// context-aware API that drains stdout and stderr completely before returning
// and can mirror each output line to an observer for live display.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Stream names the output stream a line came from.
type Stream string

const (
	// Stdout is the process standard output.
	Stdout Stream = "stdout"
	// Stderr is the process standard error.
	Stderr Stream = "stderr"
)

var (
	// ErrTimeout is returned when the configured timeout elapses before the process exits.
	ErrTimeout = errors.New("command timed out")

	// ErrCancelled is returned when the parent context is cancelled before the process exits.
	ErrCancelled = errors.New("command cancelled")
)

// Config holds the configuration for command execution.
type Config struct {
	// Command is the name or path of the command to execute (required)
	Command string

	// Args are the command-line arguments
	Args []string

	// WorkDir is the working directory for the command
	WorkDir string

	// Env specifies the environment in "KEY=value" form.
	// If nil, the command inherits the parent process environment
	Env []string

	// Timeout is the maximum execution duration. Zero means no timeout.
	Timeout time.Duration

	// StdinData is written to the command's stdin
	StdinData []byte

	// OnLine, when set, receives every complete output line as it is produced.
	// It is called from the goroutines draining the pipes and must not block.
	OnLine func(stream Stream, line string)
}

// Result holds the result of command execution.
type Result struct {
	// Stdout contains the captured stdout
	Stdout []byte

	// Stderr contains the captured stderr
	Stderr []byte

	// ExitCode is the process exit code, 0 on success
	ExitCode int

	// Duration is the wall-clock execution time
	Duration time.Duration
}

// Run executes a command and returns its captured output.
//
// A non-zero exit code is not an error: the Result carries the code and the
// caller decides what it means. Errors are returned only when the process
// could not be started (binary missing, permission denied), timed out
// (ErrTimeout) or was cancelled (ErrCancelled). The Result is non-nil in
// every case except a missing command.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}
	if len(cfg.StdinData) > 0 {
		cmd.Stdin = bytes.NewReader(cfg.StdinData)
	}

	var stdout, stderr bytes.Buffer
	var outLines, errLines *lineWriter
	if cfg.OnLine != nil {
		outLines = newLineWriter(Stdout, cfg.OnLine)
		errLines = newLineWriter(Stderr, cfg.OnLine)
		cmd.Stdout = io.MultiWriter(&stdout, outLines)
		cmd.Stderr = io.MultiWriter(&stderr, errLines)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if outLines != nil {
		outLines.flush()
		errLines.flush()
	}

	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: duration,
	}

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return result, fmt.Errorf("%w after %v", ErrTimeout, cfg.Timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return result, ErrCancelled
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		return result, fmt.Errorf("command execution failed: %w", err)
	}

	return result, nil
}

// BinaryPath resolves name on PATH. A name containing a path separator is
// checked directly.
func BinaryPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("binary %q not found in PATH: %w", name, err)
	}
	return path, nil
}

// lineWriter splits written bytes into lines and hands each to a callback.
type lineWriter struct {
	mu     sync.Mutex
	stream Stream
	fn     func(Stream, string)
	buf    bytes.Buffer
}

func newLineWriter(stream Stream, fn func(Stream, string)) *lineWriter {
	return &lineWriter{stream: stream, fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(idx+1), "\r\n"))
		w.fn(w.stream, line)
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline terminator.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.fn(w.stream, w.buf.String())
		w.buf.Reset()
	}
}
