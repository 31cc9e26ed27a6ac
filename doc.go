// Package forge generates programming exercises by driving an LLM code agent
// through a fixed sequence of stages.
//
// Every stage receives a role-scoped context packet, runs the generator as a
// subprocess, and must return one JSON object matching a named output
// contract. Outputs pass a schema check and then a policy check before an
// accept gate lets them through. Rejections are values, never panics: each
// carries a failure reason and is appended to an audit log.
//
// # Concepts
//
//   - Context packet: the JSON envelope describing learner, curriculum,
//     attempt, evidence, and policy state (package packet)
//   - Stage: one generator call bound to one output contract (package stage)
//   - Expand loop: repeated stage calls that grow an artifact section by
//     section until complete or capped (package loop)
//   - Accept gate: the only way to turn a stage result into a usable
//     payload (package gate)
//
// # Getting Started
//
//	codex := generator.NewCodex(generator.CodexOptions{Logger: logger})
//	p, err := forge.New(
//		forge.WithInvoker(codex),
//		forge.WithWorkDir(".exercise"),
//		forge.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	ex, err := p.SetupExercise(ctx, forge.ExerciseRequest{Base: base})
//
// # Error Handling
//
// Faults in the call itself return *Error with a kind. A stage rejection that
// reaches an accept gate returns an error wrapping *gate.RejectionError:
//
//	hints, err := p.Coach(ctx, in)
//	if rej, ok := gate.AsRejection(err); ok {
//		log.Printf("coach rejected: %s", rej.Reason())
//	}
//	if errors.Is(err, forge.ErrInvalidPacket) {
//		// fix the packet and retry
//	}
package forge
