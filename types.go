package forge

import (
	"github.com/zero-day-ai/exercise-forge/loop"
)

// Hint is one graduated hint in a HintPack.
type Hint struct {
	Level                int     `json:"level"`
	Text                 string  `json:"text"`
	TargetsMisconception *string `json:"targetsMisconception,omitempty"`
}

// HintPack is the accepted coach payload.
type HintPack struct {
	Contract             string  `json:"contract,omitempty"`
	Hints                []Hint  `json:"hints"`
	AllowedReveal        bool    `json:"allowedReveal"`
	FullSolutionProvided bool    `json:"fullSolutionProvided"`
	Solution             *string `json:"solution,omitempty"`
	Encouragement        string  `json:"encouragement,omitempty"`
}

// ReviewFinding is one observation in a ReviewReport.
type ReviewFinding struct {
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	FilePath *string `json:"filePath,omitempty"`
}

// ReviewReport is the accepted reviewer payload.
type ReviewReport struct {
	Contract  string          `json:"contract,omitempty"`
	PassFail  string          `json:"passFail"`
	Score     float64         `json:"score"`
	Summary   string          `json:"summary"`
	Findings  []ReviewFinding `json:"findings"`
	Strengths []string        `json:"strengths,omitempty"`
}

// Passed reports whether the verdict is PASS.
func (r ReviewReport) Passed() bool {
	return r.PassFail == "PASS"
}

// PlanStep is one step of a LessonPlan.
type PlanStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// LessonPlan is the accepted planner payload.
type LessonPlan struct {
	Title         string     `json:"title"`
	Difficulty    string     `json:"difficulty"`
	Objectives    []string   `json:"objectives"`
	Prerequisites []string   `json:"prerequisites,omitempty"`
	Steps         []PlanStep `json:"steps"`
}

// File is a path and its content.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ExercisePack is the accepted author payload.
type ExercisePack struct {
	Title          string `json:"title"`
	Prompt         string `json:"prompt"`
	StarterFiles   []File `json:"starterFiles"`
	TestFiles      []File `json:"testFiles"`
	ReferenceNotes string `json:"referenceNotes,omitempty"`
}

// Plan is the result of planner/author mode.
type Plan struct {
	Lesson   LessonPlan   `json:"lesson"`
	Exercise ExercisePack `json:"exercise"`
}

// Exercise is the result of a full setup run.
type Exercise struct {
	Scaffold map[string]any `json:"scaffold"`
	Starter  loop.Outcome   `json:"starter"`
	Tests    loop.Outcome   `json:"tests"`
	Lesson   loop.Outcome   `json:"lesson"`
}
