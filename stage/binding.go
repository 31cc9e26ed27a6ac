package stage

import (
	"errors"

	"github.com/zero-day-ai/exercise-forge/schema"
)

// Name identifies a stage. Stage names match the packet role they serve.
type Name string

const (
	Scaffold      Name = "scaffold"
	StarterExpand Name = "starter-expand"
	TestExpand    Name = "test-expand"
	LessonExpand  Name = "lesson-expand"
	Coach         Name = "coach"
	Reviewer      Name = "reviewer"
	Planner       Name = "planner"
	Author        Name = "author"
)

// ErrUnknownStage is returned when a stage has no bound output contract.
var ErrUnknownStage = errors.New("unknown stage")

// Bindings maps each stage to the schema its output must satisfy.
type Bindings map[Name]string

// LoopedBindings drive the scaffold and expand-loop pipeline.
var LoopedBindings = Bindings{
	Scaffold:      schema.ScaffoldV1,
	StarterExpand: schema.StarterSectionV1,
	TestExpand:    schema.TestSectionV1,
	LessonExpand:  schema.LessonSectionV1,
	Coach:         schema.HintPackV1,
	Reviewer:      schema.ReviewReportV1,
}

// SimpleBindings drive the non-looping planner and author pipeline.
var SimpleBindings = Bindings{
	Planner:  schema.LessonPlanV1,
	Author:   schema.ExercisePackV1,
	Coach:    schema.HintPackV1,
	Reviewer: schema.ReviewReportV1,
}

// SchemaFor returns the contract bound to name.
func (b Bindings) SchemaFor(name Name) (string, bool) {
	s, ok := b[name]
	return s, ok
}

// Merge returns a new Bindings holding b overlaid with other.
func (b Bindings) Merge(other Bindings) Bindings {
	out := make(Bindings, len(b)+len(other))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
