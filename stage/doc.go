// Package stage runs one generator invocation end to end and turns its output
// into an accept or reject verdict.
//
// A Runner resolves the stage's output contract from its Bindings, projects
// the packet to the fields the role may see, invokes the generator, extracts
// and parses JSON from the output, validates it against the contract, and
// finally applies the policy engine. Every rejection is returned as a Result
// value; Run only returns an error for caller faults such as an unknown stage
// or an unregistered contract.
//
// The Runner never mutates caller state. Accepted payloads must be consumed
// through the gate package.
package stage
