package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zero-day-ai/exercise-forge/exec"
)

// Codex defaults.
const (
	DefaultExecutable     = "codex"
	DefaultSandboxMode    = "workspace-write"
	DefaultApprovalPolicy = "never"
	DefaultTimeout        = 10 * time.Minute
)

// CodexOptions configures the codex CLI invocation.
type CodexOptions struct {
	Executable     string
	Model          string
	Profile        string
	SandboxMode    string
	ApprovalPolicy string

	// ConfigOverrides are passed as repeated -c key=value flags.
	ConfigOverrides []string

	// AddDirs grants the sandbox write access to extra directories.
	AddDirs []string

	Timeout time.Duration
	Env     []string

	// OnLine receives raw output lines for operator display.
	OnLine func(stream exec.Stream, line string)

	Logger *slog.Logger
}

// Codex runs the codex CLI in exec mode with approvals disabled and the
// sandbox scoped to the request's working directory.
type Codex struct {
	opts CodexOptions
}

// NewCodex returns a Codex invoker. Unset options take the package defaults.
func NewCodex(opts CodexOptions) *Codex {
	if opts.Executable == "" {
		opts.Executable = DefaultExecutable
	}
	if opts.SandboxMode == "" {
		opts.SandboxMode = DefaultSandboxMode
	}
	if opts.ApprovalPolicy == "" {
		opts.ApprovalPolicy = DefaultApprovalPolicy
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Codex{opts: opts}
}

// Executable returns the configured binary name or path.
func (c *Codex) Executable() string {
	return c.opts.Executable
}

// Args returns the fixed argument list for req. The prompt is read from stdin.
func (c *Codex) Args(req Request) []string {
	args := []string{"-a", c.opts.ApprovalPolicy, "exec", "-s", c.opts.SandboxMode}
	if c.opts.Model != "" {
		args = append(args, "-m", c.opts.Model)
	}
	if c.opts.Profile != "" {
		args = append(args, "-p", c.opts.Profile)
	}
	for _, override := range c.opts.ConfigOverrides {
		args = append(args, "-c", override)
	}
	if req.WorkDir != "" {
		args = append(args, "-C", req.WorkDir)
	}
	args = append(args, "--skip-git-repo-check")
	for _, d := range c.opts.AddDirs {
		args = append(args, "--add-dir", d)
	}
	args = append(args, "--color", "never")
	if req.SchemaPath != "" {
		args = append(args, "--output-schema", req.SchemaPath)
	}
	if req.OutputPath != "" {
		args = append(args, "-o", req.OutputPath)
	}
	return append(args, "-")
}

// Invoke runs codex and returns its captured output.
func (c *Codex) Invoke(ctx context.Context, req Request) (Response, error) {
	timeout := c.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	args := c.Args(req)

	c.opts.Logger.Debug("codex exec started",
		"executable", c.opts.Executable,
		"workdir", req.WorkDir,
		"sandbox", c.opts.SandboxMode,
		"timeout", timeout,
		"args", strings.Join(args, " "),
	)

	res, err := exec.Run(ctx, exec.Config{
		Command:   c.opts.Executable,
		Args:      args,
		WorkDir:   req.WorkDir,
		Env:       c.opts.Env,
		Timeout:   timeout,
		StdinData: []byte(req.Prompt),
		OnLine:    c.opts.OnLine,
	})

	var resp Response
	if res != nil {
		resp = Response{
			ExitCode: res.ExitCode,
			Stdout:   string(res.Stdout),
			Stderr:   string(res.Stderr),
			Duration: res.Duration,
		}
	}

	switch {
	case err == nil:
		c.opts.Logger.Debug("codex exec completed", "exit_code", resp.ExitCode, "duration", resp.Duration)
		return resp, nil
	case errors.Is(err, exec.ErrTimeout):
		c.opts.Logger.Warn("codex exec timed out", "timeout", timeout)
		return resp, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case errors.Is(err, exec.ErrCancelled):
		return resp, fmt.Errorf("codex exec: %w", ctx.Err())
	default:
		c.opts.Logger.Error("codex exec failed", "error", err)
		return resp, fmt.Errorf("codex exec: %w", err)
	}
}
