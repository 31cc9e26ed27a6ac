// Package retry re-drives rejected stage runs whose failure class is
// transient.
//
// Only execution-class rejections (EXECUTION_FAILED, TIMEOUT) are retried.
// Schema and policy rejections describe a defect in the generated content
// that the same inputs will reproduce, so they are returned after the first
// attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// Config controls attempts and backoff.
type Config struct {
	MaxAttempts       int           `json:"maxAttempts" yaml:"max_attempts"`
	BaseDelay         time.Duration `json:"baseDelay" yaml:"base_delay"`
	BackoffMultiplier float64       `json:"backoffMultiplier" yaml:"backoff_multiplier"`
}

// Default returns three attempts starting at 500ms and doubling.
func Default() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	var errs []error
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("base delay must not be negative, got %v", c.BaseDelay))
	}
	if c.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("backoff multiplier must be at least 1, got %v", c.BackoffMultiplier))
	}
	return errors.Join(errs...)
}

// Delay returns the wait before the given 1-based retry: BaseDelay times
// BackoffMultiplier to the power retry-1.
func (c Config) Delay(retry int) time.Duration {
	d := float64(c.BaseDelay)
	for i := 1; i < retry; i++ {
		d *= c.BackoffMultiplier
	}
	return time.Duration(d)
}

// Func runs one stage attempt.
type Func func(ctx context.Context) (stage.Result, error)

// Controller applies a Config to stage attempts.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used to report retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New returns a Controller for cfg.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	c := &Controller{cfg: cfg, logger: slog.Default(), sleep: sleepContext}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Do calls fn until it returns an accepted result, a non-retryable
// rejection, or attempts run out. Accepted results are returned as is. A
// returned rejection carries the 1-based attempt that produced it in
// RetryAttempt. An error from fn, or ctx ending during a backoff wait, stops
// the loop immediately.
func (c *Controller) Do(ctx context.Context, fn Func) (stage.Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := fn(ctx)
		if err != nil {
			return res, err
		}
		if res.Accepted {
			return res, nil
		}

		class := failure.ClassOf(res.Reason)
		if !class.Retryable() || attempt >= c.cfg.MaxAttempts {
			res.RetryAttempt = attempt
			return res, nil
		}

		delay := c.cfg.Delay(attempt)
		c.logger.Warn("retrying stage",
			"stage", res.Stage,
			"reason", res.Reason,
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"delay", delay,
		)
		if err := c.sleep(ctx, delay); err != nil {
			res.RetryAttempt = attempt
			return res, err
		}
	}
}

// Do runs fn under a Controller built from cfg.
func Do(ctx context.Context, cfg Config, fn Func) (stage.Result, error) {
	c, err := New(cfg)
	if err != nil {
		return stage.Result{}, err
	}
	return c.Do(ctx, fn)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
