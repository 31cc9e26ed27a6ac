package policy

import (
	"github.com/zero-day-ai/exercise-forge/packet"
)

// Violation is one broken rule.
type Violation struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// Input is what a rule evaluates.
type Input struct {
	SchemaName string
	Payload    map[string]any
	Packet     packet.Packet
}

// Result is the outcome of evaluating every rule bound to a schema.
type Result struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}

// Rule checks one business constraint. Check returns the violation reason and
// true when the rule is broken.
type Rule struct {
	ID     string
	Schema string
	Check  func(Input) (reason string, violated bool)
}

// Engine evaluates the rules bound to a payload's schema.
type Engine struct {
	rules map[string][]Rule
}

// NewEngine returns an engine holding the built-in rule set.
func NewEngine() *Engine {
	return newEngine(builtinRules())
}

func newEngine(rules []Rule) *Engine {
	e := &Engine{rules: make(map[string][]Rule)}
	for _, r := range rules {
		e.rules[r.Schema] = append(e.rules[r.Schema], r)
	}
	return e
}

// Evaluate runs every rule bound to in.SchemaName. Rules are independent: a
// violation never stops the remaining rules from running. Schemas with no
// bound rules always pass.
func (e *Engine) Evaluate(in Input) Result {
	var violations []Violation
	for _, r := range e.rules[in.SchemaName] {
		if reason, violated := r.Check(in); violated {
			violations = append(violations, Violation{Rule: r.ID, Reason: reason})
		}
	}
	return Result{OK: len(violations) == 0, Violations: violations}
}

// RuleIDs returns the identifiers of rules bound to schemaName, in evaluation order.
func (e *Engine) RuleIDs(schemaName string) []string {
	var ids []string
	for _, r := range e.rules[schemaName] {
		ids = append(ids, r.ID)
	}
	return ids
}
