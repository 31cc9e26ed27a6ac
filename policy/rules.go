package policy

import (
	"fmt"

	"github.com/zero-day-ai/exercise-forge/payload"
	"github.com/zero-day-ai/exercise-forge/schema"
)

// Rule identifiers.
const (
	RuleNoEarlyReveal           = "no_early_reveal"
	RuleRespectAttemptThreshold = "respect_attempt_threshold"
	RulePassScoreConsistency    = "pass_score_consistency"
)

const (
	// DefaultMaxAttemptsBeforeReveal applies when the packet sets no threshold.
	DefaultMaxAttemptsBeforeReveal = 4

	// PassingScore is the lowest score compatible with a PASS verdict.
	PassingScore = 70
)

func builtinRules() []Rule {
	return []Rule{
		{ID: RuleNoEarlyReveal, Schema: schema.HintPackV1, Check: noEarlyReveal},
		{ID: RuleRespectAttemptThreshold, Schema: schema.HintPackV1, Check: respectAttemptThreshold},
		{ID: RulePassScoreConsistency, Schema: schema.ReviewReportV1, Check: passScoreConsistency},
	}
}

// A hint pack that disallows reveal must not carry a full solution, whatever
// the attempt count.
func noEarlyReveal(in Input) (string, bool) {
	if payload.IsFalse(in.Payload, "allowedReveal") && payload.IsTrue(in.Payload, "fullSolutionProvided") {
		return "full solution provided while allowedReveal is false", true
	}
	return "", false
}

// A full solution needs the learner to reach the attempt threshold or to ask
// for the reveal explicitly.
func respectAttemptThreshold(in Input) (string, bool) {
	if !payload.IsTrue(in.Payload, "fullSolutionProvided") {
		return "", false
	}
	threshold, ok := in.Packet.MaxAttemptsBeforeReveal()
	if !ok {
		threshold = DefaultMaxAttemptsBeforeReveal
	}
	attempt, _ := in.Packet.AttemptIndex()
	if attempt >= threshold || in.Packet.UserRequestedReveal() {
		return "", false
	}
	return fmt.Sprintf("full solution provided at attempt %d, below reveal threshold %d", attempt, threshold), true
}

// A PASS verdict requires a score of at least PassingScore.
func passScoreConsistency(in Input) (string, bool) {
	verdict, _ := payload.String(in.Payload, "passFail")
	score, ok := payload.Number(in.Payload, "score")
	if verdict == "PASS" && ok && score < PassingScore {
		return fmt.Sprintf("verdict PASS with score %v below %d", score, PassingScore), true
	}
	return "", false
}
