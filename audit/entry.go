package audit

import (
	"time"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// Entry is one immutable audit record.
type Entry struct {
	Timestamp    time.Time          `json:"timestamp"`
	Stage        stage.Name         `json:"stage"`
	SchemaName   string             `json:"schemaName"`
	Reason       failure.Reason     `json:"reason"`
	Rules        []string           `json:"rules,omitempty"`
	Errors       []string           `json:"errors,omitempty"`
	Violations   []policy.Violation `json:"violations,omitempty"`
	Details      string             `json:"details,omitempty"`
	PacketID     string             `json:"packetId"`
	NodeID       string             `json:"nodeId,omitempty"`
	RetryAttempt int                `json:"retryAttempt,omitempty"`
}

var now = time.Now

// BuildEntry turns a rejected result and its originating packet into an
// Entry. It returns false for accepted results, which are never audited.
func BuildEntry(res stage.Result, p packet.Packet) (Entry, bool) {
	if res.Accepted {
		return Entry{}, false
	}

	packetID := res.PacketID
	if packetID == "" {
		packetID = p.PacketID
	}
	nodeID, _ := p.NodeID()

	return Entry{
		Timestamp:    now().UTC(),
		Stage:        res.Stage,
		SchemaName:   res.SchemaName,
		Reason:       res.Reason.Normalize(),
		Rules:        res.RuleIDs(),
		Errors:       append([]string(nil), res.Errors...),
		Violations:   append([]policy.Violation(nil), res.Violations...),
		Details:      res.Details,
		PacketID:     packetID,
		NodeID:       nodeID,
		RetryAttempt: res.RetryAttempt,
	}, true
}
