package packet

import "strings"

// Validation is the outcome of a packet precondition check.
type Validation struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"`
}

// Err returns a *ValidationError when the packet is invalid, nil otherwise.
func (v Validation) Err() error {
	if v.OK {
		return nil
	}
	return &ValidationError{Missing: v.Missing}
}

// ValidationError lists the required packet fields that were absent.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "context packet missing required fields: " + strings.Join(e.Missing, ", ")
}

// EvidencePath is reported missing when a coach or reviewer packet carries no
// compiler error codes and no test results.
const EvidencePath = "evidenceContext"

type requirement struct {
	path    string
	present func(Packet) bool
}

func has[T any](get func(Packet) (T, bool)) func(Packet) bool {
	return func(p Packet) bool {
		_, ok := get(p)
		return ok
	}
}

var required = []requirement{
	{"schemaVersion", func(p Packet) bool { return p.SchemaVersion != "" }},
	{"packetId", func(p Packet) bool { return p.PacketID != "" }},
	{"role", func(p Packet) bool { return p.Role.Valid() }},
	{"taskType", func(p Packet) bool { return strings.TrimSpace(p.TaskType) != "" }},
	{"learnerProfile.learnerId", has(Packet.LearnerID)},
	{"curriculumContext.nodeId", has(Packet.NodeID)},
	{"attemptContext.attemptIndex", has(Packet.AttemptIndex)},
	{"outputContract.schemaName", has(Packet.SchemaName)},
}

// Validate reports which required fields p lacks. Coach and reviewer packets
// must also carry grounding evidence from a real attempt.
func Validate(p Packet) Validation {
	var missing []string
	for _, req := range required {
		if !req.present(p) {
			missing = append(missing, req.path)
		}
	}
	if p.Role.RequiresEvidence() && !p.HasEvidence() {
		missing = append(missing, EvidencePath)
	}
	return Validation{OK: len(missing) == 0, Missing: missing}
}
