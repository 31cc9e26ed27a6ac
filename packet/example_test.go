package packet_test

import (
	"fmt"

	"github.com/zero-day-ai/exercise-forge/packet"
)

func ExampleValidate() {
	p := packet.Build(packet.Input{
		Role:              packet.RoleCoach,
		TaskType:          "hint",
		LearnerProfile:    &packet.LearnerProfile{LearnerID: "learner-1"},
		CurriculumContext: &packet.CurriculumContext{NodeID: "node-loops"},
		AttemptContext:    &packet.AttemptContext{AttemptIndex: packet.Int(1)},
		OutputContract:    &packet.OutputContract{SchemaName: "hint_pack_v1"},
	})

	v := packet.Validate(p)
	fmt.Println(v.OK, v.Missing)

	// Output: false [evidenceContext]
}
