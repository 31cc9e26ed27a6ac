package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	forge "github.com/zero-day-ai/exercise-forge"
	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/config"
	"github.com/zero-day-ai/exercise-forge/exec"
	"github.com/zero-day-ai/exercise-forge/generator"
	"github.com/zero-day-ai/exercise-forge/telemetry"
)

// globalFlags are the persistent flags shared by every command. Set flags
// override forge.yaml.
type globalFlags struct {
	configPath   string
	stateRoot    string
	logLevel     string
	logFormat    string
	trace        string
	traceID      string
	parentSpanID string
	metricsFile  string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "forge.yaml path (default: search upward from the working directory)")
	pf.StringVar(&f.stateRoot, "state-root", "", "directory for the audit log and state")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", "", "log format (text, json)")
	pf.StringVar(&f.trace, "trace", "", "span exporter (none, stdout, otlp)")
	pf.StringVar(&f.traceID, "trace-id", "", "hex trace ID of a parent trace to join")
	pf.StringVar(&f.parentSpanID, "parent-span-id", "", "hex span ID of the parent span to join")
	pf.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file on exit")
}

// app holds what a command needs once flags and config are resolved.
type app struct {
	cfg      *config.Config
	flags    *globalFlags
	logger   *slog.Logger
	tp       *sdktrace.TracerProvider
	registry *prometheus.Registry
	metrics  *audit.Metrics
	mirror   *audit.RedisMirror
}

type runFunc func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error

// withApp builds an app for the command, runs fn, and always releases the
// app's resources.
func withApp(f *globalFlags, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), f, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
				err = cerr
			}
		}()

		ctx := telemetry.ParentContext(cmd.Context(), f.traceID, f.parentSpanID)
		return fn(ctx, a, cmd, args)
	}
}

func newApp(ctx context.Context, f *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.stateRoot != "" {
		cfg.StateRoot = f.stateRoot
	}
	if cfg.Logging == nil {
		cfg.Logging = &config.LoggingConfig{}
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &config.TelemetryConfig{}
	}
	if f.trace != "" {
		cfg.Telemetry.Exporter = f.trace
	}

	logger := newLogger(stderr, cfg.Logging)

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Version:     Version,
		Exporter:    cfg.Telemetry.Exporter,
		Writer:      stderr,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	telemetry.Install(tp)

	registry := prometheus.NewRegistry()
	metrics, err := audit.NewMetrics(registry)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	a := &app{
		cfg:      cfg,
		flags:    f,
		logger:   logger,
		tp:       tp,
		registry: registry,
		metrics:  metrics,
	}

	if opts, ok := cfg.Audit.RedisOptions(); ok {
		mirror, err := audit.NewRedisMirror(opts)
		if err != nil {
			logger.Warn("redis audit mirror unavailable, continuing without it", "error", err)
		} else {
			a.mirror = mirror
		}
	}

	return a, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(".")
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, lc *config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.GetLevel()}
	if lc.GetFormat() == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) stateRoot() string {
	return a.cfg.GetStateRoot()
}

func (a *app) auditPath() string {
	return audit.DefaultPath(a.stateRoot())
}

// recorder writes the JSONL log first, then feeds metrics and the Redis
// mirror.
func (a *app) recorder() audit.Recorder {
	mirrors := []audit.Recorder{a.metrics}
	if a.mirror != nil {
		mirrors = append(mirrors, a.mirror)
	}
	return audit.NewMulti(a.logger, audit.NewFileLog(a.auditPath()), mirrors...)
}

func (a *app) pipeline(workDir string) (*forge.Pipeline, error) {
	opts := a.cfg.Generator.CodexOptions()
	opts.Logger = a.logger
	opts.OnLine = func(stream exec.Stream, line string) {
		a.logger.Debug("generator output", "stream", stream, "line", line)
	}

	rc, err := a.cfg.Retry.ToRetry()
	if err != nil {
		return nil, err
	}
	caps, err := a.cfg.Caps()
	if err != nil {
		return nil, err
	}

	return forge.New(
		forge.WithInvoker(generator.NewCodex(opts)),
		forge.WithLogger(a.logger),
		forge.WithTracer(a.tp.Tracer(appName)),
		forge.WithAuditRecorder(a.recorder()),
		forge.WithRetry(rc),
		forge.WithCaps(caps),
		forge.WithWorkDir(workDir),
	)
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.flags.metricsFile != "" {
		if err := prometheus.WriteToTextfile(a.flags.metricsFile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.mirror != nil {
		forge.CloseWithLog(a.mirror, a.logger, "redis audit mirror")
	}
	if err := a.tp.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush spans", "error", err)
	}
	return errors.Join(errs...)
}
