package forge

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/generator"
	"github.com/zero-day-ai/exercise-forge/loop"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/retry"
	"github.com/zero-day-ai/exercise-forge/schema"
)

// Option configures a Pipeline.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	invoker  generator.Invoker
	registry *schema.Registry
	policy   *policy.Engine
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter
	recorder audit.Recorder
	retry    retry.Config
	caps     loop.Caps
	workDir  string
}

// WithInvoker sets the generator that executes stages. Required.
func WithInvoker(inv generator.Invoker) Option {
	return func(c *pipelineConfig) {
		c.invoker = inv
	}
}

// WithRegistry replaces the built-in contract registry.
func WithRegistry(reg *schema.Registry) Option {
	return func(c *pipelineConfig) {
		c.registry = reg
	}
}

// WithPolicy replaces the default policy engine.
func WithPolicy(e *policy.Engine) Option {
	return func(c *pipelineConfig) {
		c.policy = e
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for pipeline and stage spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *pipelineConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter used for stage metrics.
func WithMeter(meter metric.Meter) Option {
	return func(c *pipelineConfig) {
		c.meter = meter
	}
}

// WithAuditRecorder sets where rejections are recorded. Without it, and
// without a work directory, rejections are only logged.
func WithAuditRecorder(r audit.Recorder) Option {
	return func(c *pipelineConfig) {
		c.recorder = r
	}
}

// WithRetry replaces the default retry schedule.
func WithRetry(cfg retry.Config) Option {
	return func(c *pipelineConfig) {
		c.retry = cfg
	}
}

// WithCaps replaces the default expand loop caps.
func WithCaps(caps loop.Caps) Option {
	return func(c *pipelineConfig) {
		c.caps = caps
	}
}

// WithWorkDir sets the generator sandbox and state root. When no audit
// recorder is given, rejections are appended under
// <dir>/audit/stage_rejections.jsonl.
func WithWorkDir(dir string) Option {
	return func(c *pipelineConfig) {
		c.workDir = dir
	}
}
