package gate_test

import (
	"fmt"

	"github.com/zero-day-ai/exercise-forge/failure"
	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/stage"
)

func ExampleAccept() {
	payload, err := gate.Accept(stage.Accept(stage.Coach, "hint_pack_v1", map[string]any{"x": 1}), "coach")
	fmt.Println(payload, err)

	_, err = gate.Accept(stage.Rejected(stage.Coach, "hint_pack_v1", failure.ReasonExecutionFailed), "coach")
	if rej, ok := gate.AsRejection(err); ok {
		fmt.Println(rej.Result.Reason)
	}

	// Output:
	// map[x:1] <nil>
	// EXECUTION_FAILED
}
