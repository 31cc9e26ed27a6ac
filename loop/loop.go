// Package loop runs the expand-loop state machine that accumulates
// multi-part artifacts one section per stage run.
//
// A loop starts in ACCUMULATING and ends in exactly one terminal state:
// DONE when the generator marks a section complete, CAPPED when the
// iteration cap is reached first, or FAILED when any stage run is rejected.
// Sections are kept in arrival order and never reordered, removed, or
// deduplicated. Completion is decided only by the generator's isComplete
// flag or the cap.
package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/payload"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// State is the loop state.
type State string

const (
	Accumulating State = "ACCUMULATING"
	Done         State = "DONE"
	Capped       State = "CAPPED"
	Failed       State = "FAILED"
)

// Terminal reports whether s ends the loop.
func (s State) Terminal() bool {
	return s == Done || s == Capped || s == Failed
}

// StageFunc runs one stage for a packet. Retry and audit wrapping happen
// inside it.
type StageFunc func(ctx context.Context, name stage.Name, p packet.Packet) (stage.Result, error)

// Request describes one loop run.
type Request struct {
	Kind Kind

	// Base supplies the non-loop packet fields for every iteration. Its role,
	// output contract, and loop fields are overwritten.
	Base packet.Input

	// Scaffold is the plan the loop expands against.
	Scaffold map[string]any

	// Prior holds sections from an earlier loop, such as starter sections
	// visible to the test loop.
	Prior []packet.Section

	// Cap overrides the depth-derived iteration cap when positive.
	Cap int
}

// Outcome is the terminal result of a loop run.
type Outcome struct {
	Kind       Kind             `json:"kind"`
	State      State            `json:"state"`
	Sections   []packet.Section `json:"sections,omitempty"`
	Iterations int              `json:"iterations"`
	Cap        int              `json:"cap"`

	// Rejection is the stage result that failed the loop.
	Rejection *stage.Result `json:"rejection,omitempty"`
}

// Expander drives expand loops.
type Expander struct {
	run    StageFunc
	caps   Caps
	logger *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander)

// WithCaps replaces the iteration caps.
func WithCaps(c Caps) Option {
	return func(e *Expander) {
		e.caps = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) {
		e.logger = logger
	}
}

// NewExpander returns an Expander that runs stages through run.
func NewExpander(run StageFunc, opts ...Option) *Expander {
	e := &Expander{run: run, caps: DefaultCaps(), logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cap returns the iteration cap that applies to req.
func (e *Expander) Cap(req Request) int {
	if req.Cap > 0 {
		return req.Cap
	}
	depth := 0
	if req.Base.CurriculumContext != nil {
		depth = req.Base.CurriculumContext.Depth
	}
	return e.caps.For(req.Kind, depth)
}

// Run drives the loop to a terminal state.
//
// A FAILED outcome carries no sections and is returned together with a
// *gate.RejectionError; callers must treat it as fatal rather than as an
// empty artifact. CAPPED returns the sections gathered so far with a nil
// error. An error from the stage function itself aborts the loop as FAILED.
func (e *Expander) Run(ctx context.Context, req Request) (Outcome, error) {
	name := req.Kind.Stage()
	schemaName, ok := stage.LoopedBindings.SchemaFor(name)
	if !ok {
		return Outcome{Kind: req.Kind, State: Failed}, fmt.Errorf("%w: %s", stage.ErrUnknownStage, name)
	}

	out := Outcome{Kind: req.Kind, State: Accumulating, Cap: e.Cap(req)}
	var (
		sections []packet.Section
		focus    string
	)

	for out.Iterations < out.Cap {
		in := req.Base
		in.Role = req.Kind.Role()
		in.OutputContract = &packet.OutputContract{SchemaName: schemaName, Format: "json"}
		in.ScaffoldContext = req.Scaffold
		in.PriorLoopSections = req.Prior
		in.CurrentSections = sections
		in.NextFocus = focus
		p := packet.Build(in)

		out.Iterations++
		res, err := e.run(ctx, name, p)
		if err != nil {
			out.State = Failed
			return out, fmt.Errorf("%s loop iteration %d: %w", req.Kind, out.Iterations, err)
		}

		m, err := gate.Accept(res, fmt.Sprintf("%s loop iteration %d", req.Kind, out.Iterations))
		if err != nil {
			out.State = Failed
			out.Rejection = &res
			e.logger.Warn("expand loop failed",
				"kind", req.Kind,
				"iteration", out.Iterations,
				"reason", res.Reason,
			)
			return out, err
		}

		section := packet.SectionFromPayload(m)
		sections = append(sections, section)
		focus, _ = payload.String(m, "nextFocus")

		e.logger.Debug("expand loop section accepted",
			"kind", req.Kind,
			"iteration", out.Iterations,
			"complete", section.IsComplete,
			"next_focus", focus,
		)

		if section.IsComplete {
			out.State = Done
			out.Sections = sections
			return out, nil
		}
	}

	out.State = Capped
	out.Sections = sections
	e.logger.Info("expand loop reached cap",
		"kind", req.Kind,
		"cap", out.Cap,
		"sections", len(sections),
	)
	return out, nil
}
