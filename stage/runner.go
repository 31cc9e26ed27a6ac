package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/generator"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/parser"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/schema"
)

const instrumentationName = "github.com/zero-day-ai/exercise-forge/stage"

// ArtifactDir is the directory under Options.WorkDir that receives the output
// schema and output capture files.
const ArtifactDir = ".forge"

// Options tune a single run.
type Options struct {
	// Prompt replaces the default rendering of packet and contract.
	Prompt string

	// WorkDir scopes the generator sandbox. When set, the output contract is
	// written under WorkDir/.forge and handed to the generator.
	WorkDir string

	// OutputPath is where the generator writes its final message. When empty
	// and WorkDir is set, a path under WorkDir/.forge is used.
	OutputPath string

	// Timeout overrides the generator's default deadline.
	Timeout time.Duration

	// Supplement is rendered after the packet in the default prompt. The
	// author stage receives the accepted lesson plan this way.
	Supplement map[string]any
}

// Runner executes stages against a generator.
type Runner struct {
	invoker   generator.Invoker
	validator *schema.Validator
	policy    *policy.Engine
	bindings  Bindings
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   *runnerMetrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBindings replaces the stage to contract table. The default is LoopedBindings.
func WithBindings(b Bindings) RunnerOption {
	return func(r *Runner) {
		r.bindings = b
	}
}

// WithPolicy replaces the policy engine.
func WithPolicy(e *policy.Engine) RunnerOption {
	return func(r *Runner) {
		r.policy = e
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithMeter sets the meter used for stage metrics.
func WithMeter(meter metric.Meter) RunnerOption {
	return func(r *Runner) {
		r.meter = meter
	}
}

// NewRunner creates a Runner. Tracer and meter default to the global
// OpenTelemetry providers.
func NewRunner(invoker generator.Invoker, validator *schema.Validator, opts ...RunnerOption) (*Runner, error) {
	if invoker == nil {
		return nil, errors.New("stage runner requires a generator invoker")
	}
	if validator == nil {
		return nil, errors.New("stage runner requires a schema validator")
	}

	r := &Runner{
		invoker:   invoker,
		validator: validator,
		policy:    policy.NewEngine(),
		bindings:  LoopedBindings,
		logger:    slog.Default(),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}

	m, err := newRunnerMetrics(r.meter)
	if err != nil {
		return nil, err
	}
	r.metrics = m
	return r, nil
}

// Bindings returns the runner's stage to contract table.
func (r *Runner) Bindings() Bindings {
	return r.bindings
}

// Run executes stage name for packet p.
//
// Run returns an error only for faults in the call itself: an unbound stage
// (ErrUnknownStage), a contract missing from the registry
// (schema.ErrUnknownSchema), a packet with an unknown role
// (packet.ErrUnknownRole), an unwritable artifact directory, or ctx ending
// while the generator runs. Everything the generator does wrong comes back
// as a rejected Result.
func (r *Runner) Run(ctx context.Context, name Name, p packet.Packet, opts Options) (Result, error) {
	schemaName, ok := r.bindings.SchemaFor(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	contract, err := r.validator.Registry().MarshalIndented(schemaName)
	if err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", name, err)
	}
	projected, err := packet.Project(p)
	if err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", name, err)
	}

	ctx, span := r.tracer.Start(ctx, "stage.run", trace.WithAttributes(
		attribute.String("stage.name", string(name)),
		attribute.String("stage.schema", schemaName),
		attribute.String("packet.id", p.PacketID),
	))
	defer span.End()

	start := time.Now()
	res, err := r.run(ctx, name, schemaName, projected, contract, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	res.Stage = name
	res.SchemaName = schemaName
	res.PacketID = p.PacketID
	res.Duration = time.Since(start)

	r.observe(ctx, span, res)
	return res, nil
}

func (r *Runner) run(ctx context.Context, name Name, schemaName string, p packet.Packet, contract []byte, opts Options) (Result, error) {
	prompt := opts.Prompt
	if prompt == "" {
		packetJSON, err := p.JSON()
		if err != nil {
			return Result{}, fmt.Errorf("stage %s: marshal packet: %w", name, err)
		}
		var supplement []byte
		if opts.Supplement != nil {
			supplement, err = json.MarshalIndent(opts.Supplement, "", "  ")
			if err != nil {
				return Result{}, fmt.Errorf("stage %s: marshal supplement: %w", name, err)
			}
		}
		prompt = DefaultPrompt(name, schemaName, packetJSON, supplement, contract)
	}

	req := generator.Request{
		Prompt:     prompt,
		WorkDir:    opts.WorkDir,
		OutputPath: opts.OutputPath,
		Timeout:    opts.Timeout,
	}
	if opts.WorkDir != "" {
		if err := prepareArtifacts(name, contract, &req); err != nil {
			return Result{}, fmt.Errorf("stage %s: %w", name, err)
		}
	}
	// A capture file left by an earlier run must never be judged as this
	// run's output.
	if req.OutputPath != "" {
		if err := os.Remove(req.OutputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("stage %s: clear stale output: %w", name, err)
		}
	}

	resp, err := r.invoker.Invoke(ctx, req)
	switch {
	case errors.Is(err, generator.ErrTimeout):
		return Result{Reason: failure.ReasonTimeout, Details: joinDetails(err.Error(), resp.Stderr)}, nil
	case err != nil && ctx.Err() != nil:
		return Result{}, fmt.Errorf("stage %s: %w", name, ctx.Err())
	case err != nil:
		return Result{Reason: failure.ReasonExecutionFailed, Details: joinDetails(err.Error(), resp.Stderr)}, nil
	case resp.ExitCode != 0:
		return Result{
			Reason:  failure.ReasonExecutionFailed,
			Details: joinDetails(fmt.Sprintf("generator exited with code %d", resp.ExitCode), resp.Stderr),
		}, nil
	}

	res, err := Judge(r.validator, r.policy, schemaName, readOutput(req.OutputPath, resp.Stdout), p)
	if err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", name, err)
	}
	return res, nil
}

// Judge decides the verdict for raw generator output: it must decode to JSON,
// pass the schemaName contract, and then pass that contract's policy rules.
// The returned Result carries no stage identity. An unregistered schemaName
// is returned as an error.
func Judge(v *schema.Validator, engine *policy.Engine, schemaName, raw string, p packet.Packet) (Result, error) {
	decoded, err := parser.DecodeOutput(raw)
	if err != nil {
		return Result{
			Reason: failure.ReasonSchemaValidationFailed,
			Errors: []string{"$: " + err.Error(), raw},
		}, nil
	}

	verdict, err := v.Validate(schemaName, decoded)
	if err != nil {
		return Result{}, err
	}
	if !verdict.OK {
		return Result{Reason: failure.ReasonSchemaValidationFailed, Errors: verdict.Errors}, nil
	}

	// A passing object contract guarantees an object here.
	payload, _ := decoded.(map[string]any)

	pol := engine.Evaluate(policy.Input{SchemaName: schemaName, Payload: payload, Packet: p})
	if !pol.OK {
		return Result{Reason: failure.ReasonPolicyViolation, Violations: pol.Violations}, nil
	}

	return Result{Accepted: true, Payload: payload}, nil
}

func prepareArtifacts(name Name, contract []byte, req *generator.Request) error {
	dir := filepath.Join(req.WorkDir, ArtifactDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	req.SchemaPath = filepath.Join(dir, string(name)+".schema.json")
	if err := os.WriteFile(req.SchemaPath, append(contract, '\n'), 0o644); err != nil {
		return fmt.Errorf("write output schema: %w", err)
	}
	if req.OutputPath == "" {
		req.OutputPath = filepath.Join(dir, string(name)+".output.json")
	}
	return nil
}

// readOutput prefers the output capture file and falls back to stdout when
// the file is absent or empty.
func readOutput(path, stdout string) string {
	if path == "" {
		return stdout
	}
	data, err := os.ReadFile(path)
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return stdout
	}
	return string(data)
}

func joinDetails(msg, stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return msg
	}
	return msg + "\n" + stderr
}

func (r *Runner) observe(ctx context.Context, span trace.Span, res Result) {
	outcome := "accepted"
	if !res.Accepted {
		outcome = string(res.Reason)
	}

	span.SetAttributes(
		attribute.Bool("stage.accepted", res.Accepted),
		attribute.String("stage.outcome", outcome),
		attribute.Int64("stage.duration_ms", res.Duration.Milliseconds()),
	)
	if res.Accepted {
		span.SetStatus(codes.Ok, "accepted")
	} else {
		span.SetStatus(codes.Error, outcome)
	}

	attrs := metric.WithAttributes(
		attribute.String("stage", string(res.Stage)),
		attribute.String("outcome", outcome),
	)
	r.metrics.runs.Add(ctx, 1, attrs)
	r.metrics.duration.Record(ctx, float64(res.Duration.Milliseconds()), attrs)

	if res.Accepted {
		r.logger.Info("stage accepted",
			"stage", res.Stage,
			"schema", res.SchemaName,
			"packet_id", res.PacketID,
			"duration", res.Duration,
		)
		return
	}
	r.logger.Warn("stage rejected",
		"stage", res.Stage,
		"schema", res.SchemaName,
		"packet_id", res.PacketID,
		"reason", res.Reason,
		"errors", len(res.Errors),
		"violations", res.RuleIDs(),
	)
}

type runnerMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

func newRunnerMetrics(meter metric.Meter) (*runnerMetrics, error) {
	m := &runnerMetrics{}
	var err error

	m.runs, err = meter.Int64Counter(
		"stage.runs",
		metric.WithDescription("Number of stage runs by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage runs counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"stage.duration",
		metric.WithDescription("Stage run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}
	return m, nil
}
