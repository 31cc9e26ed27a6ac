package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/loop"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/retry"
	"github.com/zero-day-ai/exercise-forge/schema"
	"github.com/zero-day-ai/exercise-forge/stage"
)

const instrumentationName = "github.com/zero-day-ai/exercise-forge"

// Pipeline sequences stages: it validates packets, runs stages under retry,
// gates results, drives the expand loops, and audits every rejection.
//
// A Pipeline holds no per-session state and may be shared, but the stages of
// one exercise run strictly in order.
type Pipeline struct {
	looped   *stage.Runner
	simple   *stage.Runner
	retry    *retry.Controller
	expander *loop.Expander
	recorder audit.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	workDir  string
}

// ExerciseRequest is the input to SetupExercise. Base supplies the learner,
// curriculum, attempt, and policy sections shared by every stage; role,
// output contract, and loop fields are set per stage.
type ExerciseRequest struct {
	Base packet.Input

	// Per-loop cap overrides. Zero uses the depth-derived cap.
	StarterCap int
	TestCap    int
	LessonCap  int
}

// New assembles a Pipeline. WithInvoker is required.
func New(opts ...Option) (*Pipeline, error) {
	const op = "forge.New"

	cfg := pipelineConfig{
		logger: slog.Default(),
		retry:  retry.Default(),
		caps:   loop.DefaultCaps(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.invoker == nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: generator invoker is required", ErrInvalidConfig))
	}
	if err := cfg.caps.Validate(); err != nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if cfg.registry == nil {
		reg, err := schema.BuiltinRegistry()
		if err != nil {
			return nil, NewInternalError(op, err)
		}
		cfg.registry = reg
	}
	if cfg.policy == nil {
		cfg.policy = policy.NewEngine()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	if cfg.recorder == nil {
		if cfg.workDir != "" {
			cfg.recorder = audit.NewFileLog(audit.DefaultPath(cfg.workDir))
		} else {
			cfg.recorder = audit.Discard{}
		}
	}

	ctrl, err := retry.New(cfg.retry, retry.WithLogger(cfg.logger))
	if err != nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	validator := schema.NewValidator(cfg.registry)
	runnerOpts := []stage.RunnerOption{
		stage.WithPolicy(cfg.policy),
		stage.WithLogger(cfg.logger),
		stage.WithTracer(cfg.tracer),
	}
	if cfg.meter != nil {
		runnerOpts = append(runnerOpts, stage.WithMeter(cfg.meter))
	}

	looped, err := stage.NewRunner(cfg.invoker, validator, append(runnerOpts, stage.WithBindings(stage.LoopedBindings))...)
	if err != nil {
		return nil, NewConfigurationError(op, err)
	}
	simple, err := stage.NewRunner(cfg.invoker, validator, append(runnerOpts, stage.WithBindings(stage.SimpleBindings))...)
	if err != nil {
		return nil, NewConfigurationError(op, err)
	}

	p := &Pipeline{
		looped:   looped,
		simple:   simple,
		retry:    ctrl,
		recorder: cfg.recorder,
		logger:   cfg.logger,
		tracer:   cfg.tracer,
		workDir:  cfg.workDir,
	}
	p.expander = loop.NewExpander(p.loopStage, loop.WithCaps(cfg.caps), loop.WithLogger(cfg.logger))
	return p, nil
}

// RunStage builds a packet from in, validates it, and runs stage name under
// the retry schedule. Rejections come back as a Result with a nil error and
// are appended to the audit log; callers decide whether to gate them.
//
// A packet missing required fields fails fast with ErrInvalidPacket before
// any generator work.
func (p *Pipeline) RunStage(ctx context.Context, name stage.Name, in packet.Input) (stage.Result, error) {
	return p.runPacket(ctx, "Pipeline.RunStage", name, packet.Build(in), stage.Options{})
}

// SetupExercise runs scaffold, then the starter, test, and lesson expand
// loops. The test loop sees the starter sections as prior-loop sections and
// the lesson loop sees both. A rejected scaffold or a FAILED loop aborts
// setup with an error wrapping *gate.RejectionError.
func (p *Pipeline) SetupExercise(ctx context.Context, req ExerciseRequest) (*Exercise, error) {
	const op = "Pipeline.SetupExercise"

	ctx, span := p.tracer.Start(ctx, "pipeline.setup_exercise", trace.WithAttributes(nodeAttrs(req.Base)...))
	defer span.End()

	ex, err := p.setupExercise(ctx, op, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return ex, nil
}

func (p *Pipeline) setupExercise(ctx context.Context, op string, req ExerciseRequest) (*Exercise, error) {
	in := req.Base
	in.Role = packet.RoleScaffold
	in.OutputContract = &packet.OutputContract{SchemaName: schema.ScaffoldV1, Format: "json"}
	in.ScaffoldContext, in.PriorLoopSections, in.CurrentSections, in.NextFocus = nil, nil, nil, ""

	res, err := p.runPacket(ctx, op, stage.Scaffold, packet.Build(in), stage.Options{})
	if err != nil {
		return nil, err
	}
	scaffold, err := gate.Accept(res, "scaffold")
	if err != nil {
		return nil, NewExecutionError(op, err)
	}
	p.logger.Info("scaffold accepted", "packet_id", res.PacketID, "attempt", res.RetryAttempt)

	ex := &Exercise{Scaffold: scaffold}

	ex.Starter, err = p.expand(ctx, op, loop.Request{Kind: loop.Starter, Base: req.Base, Scaffold: scaffold, Cap: req.StarterCap})
	if err != nil {
		return nil, err
	}

	ex.Tests, err = p.expand(ctx, op, loop.Request{
		Kind:     loop.Test,
		Base:     req.Base,
		Scaffold: scaffold,
		Prior:    ex.Starter.Sections,
		Cap:      req.TestCap,
	})
	if err != nil {
		return nil, err
	}

	prior := make([]packet.Section, 0, len(ex.Starter.Sections)+len(ex.Tests.Sections))
	prior = append(prior, ex.Starter.Sections...)
	prior = append(prior, ex.Tests.Sections...)
	ex.Lesson, err = p.expand(ctx, op, loop.Request{
		Kind:     loop.Lesson,
		Base:     req.Base,
		Scaffold: scaffold,
		Prior:    prior,
		Cap:      req.LessonCap,
	})
	if err != nil {
		return nil, err
	}

	return ex, nil
}

func (p *Pipeline) expand(ctx context.Context, op string, req loop.Request) (loop.Outcome, error) {
	out, err := p.expander.Run(ctx, req)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) {
			return out, err
		}
		return out, NewExecutionError(op, err).WithContext(map[string]any{"loop": string(req.Kind)})
	}
	p.logger.Info("expand loop finished",
		"kind", req.Kind,
		"state", out.State,
		"sections", len(out.Sections),
		"cap", out.Cap,
	)
	return out, nil
}

// Coach runs the coach stage and returns the accepted hint pack. Evidence is
// required in the packet. A rejection is returned as *gate.RejectionError.
func (p *Pipeline) Coach(ctx context.Context, in packet.Input) (HintPack, error) {
	const op = "Pipeline.Coach"
	in.Role = packet.RoleCoach
	in.OutputContract = &packet.OutputContract{SchemaName: schema.HintPackV1, Format: "json"}

	res, err := p.runPacket(ctx, op, stage.Coach, packet.Build(in), stage.Options{})
	if err != nil {
		return HintPack{}, err
	}
	hp, err := gate.AcceptInto[HintPack](res, "coach")
	if err != nil {
		return HintPack{}, NewExecutionError(op, err)
	}
	return hp, nil
}

// Review runs the reviewer stage and returns the accepted report.
func (p *Pipeline) Review(ctx context.Context, in packet.Input) (ReviewReport, error) {
	const op = "Pipeline.Review"
	in.Role = packet.RoleReviewer
	in.OutputContract = &packet.OutputContract{SchemaName: schema.ReviewReportV1, Format: "json"}

	res, err := p.runPacket(ctx, op, stage.Reviewer, packet.Build(in), stage.Options{})
	if err != nil {
		return ReviewReport{}, err
	}
	rr, err := gate.AcceptInto[ReviewReport](res, "review")
	if err != nil {
		return ReviewReport{}, NewExecutionError(op, err)
	}
	return rr, nil
}

// PlanExercise runs the non-looping planner then author stages. The author
// receives the accepted lesson plan as supplementary prompt context.
func (p *Pipeline) PlanExercise(ctx context.Context, in packet.Input) (*Plan, error) {
	const op = "Pipeline.PlanExercise"

	ctx, span := p.tracer.Start(ctx, "pipeline.plan_exercise", trace.WithAttributes(nodeAttrs(in)...))
	defer span.End()

	in.ScaffoldContext, in.PriorLoopSections, in.CurrentSections, in.NextFocus = nil, nil, nil, ""

	planIn := in
	planIn.Role = packet.RolePlanner
	planIn.OutputContract = &packet.OutputContract{SchemaName: schema.LessonPlanV1, Format: "json"}
	res, err := p.runPacket(ctx, op, stage.Planner, packet.Build(planIn), stage.Options{})
	if err != nil {
		return nil, p.fail(span, err)
	}
	planPayload, err := gate.Accept(res, "planner")
	if err != nil {
		return nil, p.fail(span, NewExecutionError(op, err))
	}
	lesson, err := gate.Decode[LessonPlan](planPayload, "planner")
	if err != nil {
		return nil, p.fail(span, NewExecutionError(op, err))
	}

	authorIn := in
	authorIn.Role = packet.RoleAuthor
	authorIn.OutputContract = &packet.OutputContract{SchemaName: schema.ExercisePackV1, Format: "json"}
	res, err = p.runPacket(ctx, op, stage.Author, packet.Build(authorIn), stage.Options{
		Supplement: map[string]any{"lessonPlan": planPayload},
	})
	if err != nil {
		return nil, p.fail(span, err)
	}
	pack, err := gate.AcceptInto[ExercisePack](res, "author")
	if err != nil {
		return nil, p.fail(span, NewExecutionError(op, err))
	}

	return &Plan{Lesson: lesson, Exercise: pack}, nil
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// loopStage adapts runPacket to loop.StageFunc.
func (p *Pipeline) loopStage(ctx context.Context, name stage.Name, pk packet.Packet) (stage.Result, error) {
	return p.runPacket(ctx, "Pipeline.SetupExercise", name, pk, stage.Options{})
}

func (p *Pipeline) runPacket(ctx context.Context, op string, name stage.Name, pk packet.Packet, opts stage.Options) (stage.Result, error) {
	errCtx := map[string]any{"stage": string(name)}

	if v := packet.Validate(pk); !v.OK {
		return stage.Result{}, NewValidationError(op, fmt.Errorf("%w: %w", ErrInvalidPacket, v.Err())).WithContext(errCtx)
	}

	runner := p.runnerFor(name)
	if runner == nil {
		return stage.Result{}, NewValidationError(op, fmt.Errorf("%w: %s", stage.ErrUnknownStage, name))
	}
	if opts.WorkDir == "" {
		opts.WorkDir = p.workDir
	}

	res, err := p.retry.Do(ctx, func(ctx context.Context) (stage.Result, error) {
		return runner.Run(ctx, name, pk, opts)
	})
	if !res.Accepted && res.Stage != "" {
		if auditErr := p.record(ctx, res, pk); auditErr != nil && err == nil {
			return res, NewInternalError(op, auditErr).WithContext(errCtx)
		}
	}
	if err != nil {
		return res, (&Error{Op: op, Kind: classify(err), Err: err}).WithContext(errCtx)
	}
	return res, nil
}

func (p *Pipeline) runnerFor(name stage.Name) *stage.Runner {
	if _, ok := p.looped.Bindings().SchemaFor(name); ok {
		return p.looped
	}
	if _, ok := p.simple.Bindings().SchemaFor(name); ok {
		return p.simple
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, res stage.Result, pk packet.Packet) error {
	entry, ok := audit.BuildEntry(res, pk)
	if !ok {
		return nil
	}
	p.logger.Warn("stage rejected",
		"stage", entry.Stage,
		"schema", entry.SchemaName,
		"reason", entry.Reason,
		"packet_id", entry.PacketID,
		"attempt", entry.RetryAttempt,
	)
	if err := p.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Error("failed to record stage rejection",
			"stage", entry.Stage,
			"packet_id", entry.PacketID,
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}
	return nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, stage.ErrUnknownStage), errors.Is(err, packet.ErrUnknownRole):
		return KindValidation
	case errors.Is(err, schema.ErrUnknownSchema):
		return KindConfiguration
	default:
		return KindExecution
	}
}

func nodeAttrs(in packet.Input) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if in.CurriculumContext != nil {
		attrs = append(attrs,
			attribute.String("curriculum.node_id", in.CurriculumContext.NodeID),
			attribute.Int("curriculum.depth", in.CurriculumContext.Depth),
		)
	}
	if in.LearnerProfile != nil {
		attrs = append(attrs, attribute.String("learner.id", in.LearnerProfile.LearnerID))
	}
	return attrs
}
