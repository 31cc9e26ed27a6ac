package packet

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/exercise-forge/payload"
)

// SchemaVersion identifies the packet shape.
const SchemaVersion = "context_packet_v1"

// Packet is the request envelope for one stage invocation. Optional sub-records
// and loop fields are omitted from the JSON form when absent.
type Packet struct {
	SchemaVersion string    `json:"schemaVersion"`
	PacketID      string    `json:"packetId"`
	Timestamp     time.Time `json:"timestamp"`
	Role          Role      `json:"role"`
	TaskType      string    `json:"taskType"`

	LearnerProfile       *LearnerProfile       `json:"learnerProfile,omitempty"`
	CurriculumContext    *CurriculumContext    `json:"curriculumContext,omitempty"`
	MisconceptionContext *MisconceptionContext `json:"misconceptionContext,omitempty"`
	AttemptContext       *AttemptContext       `json:"attemptContext,omitempty"`
	EvidenceContext      *EvidenceContext      `json:"evidenceContext,omitempty"`
	PolicyContext        *PolicyContext        `json:"policyContext,omitempty"`
	OutputContract       *OutputContract       `json:"outputContract,omitempty"`

	ScaffoldContext   map[string]any `json:"scaffoldContext,omitempty"`
	PriorLoopSections []Section      `json:"priorLoopSections,omitempty"`
	CurrentSections   []Section      `json:"currentSections,omitempty"`
	NextFocus         string         `json:"nextFocus,omitempty"`
}

// LearnerProfile describes who the exercise is for.
type LearnerProfile struct {
	LearnerID         string   `json:"learnerId"`
	Level             string   `json:"level,omitempty"`
	PreferredLanguage string   `json:"preferredLanguage,omitempty"`
	Goals             []string `json:"goals,omitempty"`
}

// CurriculumContext locates the exercise in the curriculum graph.
type CurriculumContext struct {
	NodeID     string   `json:"nodeId"`
	Title      string   `json:"title,omitempty"`
	Depth      int      `json:"depth"`
	Language   string   `json:"language,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
}

// Misconception is one suspected learner misconception.
type Misconception struct {
	ID          string  `json:"id"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// MisconceptionContext lists misconceptions active for the learner.
type MisconceptionContext struct {
	Active []Misconception `json:"active,omitempty"`
}

// AttemptContext describes the learner's current attempt. AttemptIndex is a
// pointer because zero is a valid index.
type AttemptContext struct {
	AttemptIndex        *int   `json:"attemptIndex,omitempty"`
	UserRequestedReveal bool   `json:"userRequestedReveal,omitempty"`
	LastSubmission      string `json:"lastSubmission,omitempty"`
}

// CompilerEvidence is compiler output from a real attempt.
type CompilerEvidence struct {
	ErrorCodes []string `json:"errorCodes,omitempty"`
	Output     string   `json:"output,omitempty"`
}

// TestEvidence is test-runner output from a real attempt.
type TestEvidence struct {
	Failing []string `json:"failing,omitempty"`
	Passing []string `json:"passing,omitempty"`
}

// EvidenceContext grounds coach and reviewer stages in an actual attempt.
type EvidenceContext struct {
	Compiler *CompilerEvidence `json:"compiler,omitempty"`
	Tests    *TestEvidence     `json:"tests,omitempty"`
}

// PolicyContext carries caller-side policy knobs read by the policy engine.
type PolicyContext struct {
	MaxAttemptsBeforeReveal *int `json:"maxAttemptsBeforeReveal,omitempty"`
	AllowSolutionReveal     bool `json:"allowSolutionReveal,omitempty"`
}

// OutputContract names the schema the stage output must satisfy.
type OutputContract struct {
	SchemaName string `json:"schemaName"`
	Format     string `json:"format,omitempty"`
}

// Section is one incremental unit produced by an expand-loop stage.
type Section struct {
	FilePath     string `json:"filePath,omitempty"`
	SectionTitle string `json:"sectionTitle,omitempty"`
	Content      string `json:"content"`
	IsComplete   bool   `json:"isComplete"`
}

// SectionFromPayload reads a section out of an accepted stage payload.
func SectionFromPayload(m map[string]any) Section {
	var s Section
	s.FilePath, _ = payload.String(m, "filePath")
	s.SectionTitle, _ = payload.String(m, "sectionTitle")
	s.Content, _ = payload.String(m, "content")
	s.IsComplete = payload.IsTrue(m, "isComplete")
	return s
}

// Input is the set of named values a packet is built from. Loop fields are
// carried into the packet only when non-empty.
type Input struct {
	Role     Role
	TaskType string

	LearnerProfile       *LearnerProfile
	CurriculumContext    *CurriculumContext
	MisconceptionContext *MisconceptionContext
	AttemptContext       *AttemptContext
	EvidenceContext      *EvidenceContext
	PolicyContext        *PolicyContext
	OutputContract       *OutputContract

	ScaffoldContext   map[string]any
	PriorLoopSections []Section
	CurrentSections   []Section
	NextFocus         string
}

var (
	newPacketID = uuid.NewString
	now         = time.Now
)

// Build returns a new packet with a fresh id and UTC timestamp. Every value
// reachable from in is copied, so later changes to in do not leak into the
// packet.
func Build(in Input) Packet {
	p := Packet{
		SchemaVersion:        SchemaVersion,
		PacketID:             newPacketID(),
		Timestamp:            now().UTC(),
		Role:                 in.Role,
		TaskType:             in.TaskType,
		LearnerProfile:       in.LearnerProfile.clone(),
		CurriculumContext:    in.CurriculumContext.clone(),
		MisconceptionContext: in.MisconceptionContext.clone(),
		AttemptContext:       in.AttemptContext.clone(),
		EvidenceContext:      in.EvidenceContext.clone(),
		PolicyContext:        in.PolicyContext.clone(),
		OutputContract:       in.OutputContract.clone(),
	}
	if len(in.ScaffoldContext) > 0 {
		p.ScaffoldContext = payload.Clone(in.ScaffoldContext)
	}
	if len(in.PriorLoopSections) > 0 {
		p.PriorLoopSections = append([]Section(nil), in.PriorLoopSections...)
	}
	if len(in.CurrentSections) > 0 {
		p.CurrentSections = append([]Section(nil), in.CurrentSections...)
	}
	if in.NextFocus != "" {
		p.NextFocus = in.NextFocus
	}
	return p
}

// Input returns the named values p was built from. Building the result
// yields an equivalent packet with a new id and timestamp.
func (p Packet) Input() Input {
	return Input{
		Role:                 p.Role,
		TaskType:             p.TaskType,
		LearnerProfile:       p.LearnerProfile.clone(),
		CurriculumContext:    p.CurriculumContext.clone(),
		MisconceptionContext: p.MisconceptionContext.clone(),
		AttemptContext:       p.AttemptContext.clone(),
		EvidenceContext:      p.EvidenceContext.clone(),
		PolicyContext:        p.PolicyContext.clone(),
		OutputContract:       p.OutputContract.clone(),
		ScaffoldContext:      payload.Clone(p.ScaffoldContext),
		PriorLoopSections:    append([]Section(nil), p.PriorLoopSections...),
		CurrentSections:      append([]Section(nil), p.CurrentSections...),
		NextFocus:            p.NextFocus,
	}
}

// JSON renders the packet as indented JSON for inclusion in a prompt.
func (p Packet) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// LearnerID returns learnerProfile.learnerId.
func (p Packet) LearnerID() (string, bool) {
	if p.LearnerProfile == nil || p.LearnerProfile.LearnerID == "" {
		return "", false
	}
	return p.LearnerProfile.LearnerID, true
}

// NodeID returns curriculumContext.nodeId.
func (p Packet) NodeID() (string, bool) {
	if p.CurriculumContext == nil || p.CurriculumContext.NodeID == "" {
		return "", false
	}
	return p.CurriculumContext.NodeID, true
}

// Depth returns curriculumContext.depth.
func (p Packet) Depth() (int, bool) {
	if p.CurriculumContext == nil {
		return 0, false
	}
	return p.CurriculumContext.Depth, true
}

// AttemptIndex returns attemptContext.attemptIndex.
func (p Packet) AttemptIndex() (int, bool) {
	if p.AttemptContext == nil || p.AttemptContext.AttemptIndex == nil {
		return 0, false
	}
	return *p.AttemptContext.AttemptIndex, true
}

// UserRequestedReveal reports attemptContext.userRequestedReveal.
func (p Packet) UserRequestedReveal() bool {
	return p.AttemptContext != nil && p.AttemptContext.UserRequestedReveal
}

// MaxAttemptsBeforeReveal returns policyContext.maxAttemptsBeforeReveal.
func (p Packet) MaxAttemptsBeforeReveal() (int, bool) {
	if p.PolicyContext == nil || p.PolicyContext.MaxAttemptsBeforeReveal == nil {
		return 0, false
	}
	return *p.PolicyContext.MaxAttemptsBeforeReveal, true
}

// SchemaName returns outputContract.schemaName.
func (p Packet) SchemaName() (string, bool) {
	if p.OutputContract == nil || p.OutputContract.SchemaName == "" {
		return "", false
	}
	return p.OutputContract.SchemaName, true
}

// HasEvidence reports whether any compiler error code, failing test, or
// passing test is recorded.
func (p Packet) HasEvidence() bool {
	e := p.EvidenceContext
	if e == nil {
		return false
	}
	if e.Compiler != nil && len(e.Compiler.ErrorCodes) > 0 {
		return true
	}
	return e.Tests != nil && (len(e.Tests.Failing) > 0 || len(e.Tests.Passing) > 0)
}

// Int returns a pointer to v, for optional integer fields.
func Int(v int) *int {
	return &v
}

func (l *LearnerProfile) clone() *LearnerProfile {
	if l == nil {
		return nil
	}
	c := *l
	c.Goals = cloneStrings(l.Goals)
	return &c
}

func (c *CurriculumContext) clone() *CurriculumContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Objectives = cloneStrings(c.Objectives)
	return &out
}

func (m *MisconceptionContext) clone() *MisconceptionContext {
	if m == nil {
		return nil
	}
	return &MisconceptionContext{Active: append([]Misconception(nil), m.Active...)}
}

func (a *AttemptContext) clone() *AttemptContext {
	if a == nil {
		return nil
	}
	c := *a
	if a.AttemptIndex != nil {
		c.AttemptIndex = Int(*a.AttemptIndex)
	}
	return &c
}

func (e *EvidenceContext) clone() *EvidenceContext {
	if e == nil {
		return nil
	}
	c := &EvidenceContext{}
	if e.Compiler != nil {
		c.Compiler = &CompilerEvidence{
			ErrorCodes: cloneStrings(e.Compiler.ErrorCodes),
			Output:     e.Compiler.Output,
		}
	}
	if e.Tests != nil {
		c.Tests = &TestEvidence{
			Failing: cloneStrings(e.Tests.Failing),
			Passing: cloneStrings(e.Tests.Passing),
		}
	}
	return c
}

func (p *PolicyContext) clone() *PolicyContext {
	if p == nil {
		return nil
	}
	c := *p
	if p.MaxAttemptsBeforeReveal != nil {
		c.MaxAttemptsBeforeReveal = Int(*p.MaxAttemptsBeforeReveal)
	}
	return &c
}

func (o *OutputContract) clone() *OutputContract {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
