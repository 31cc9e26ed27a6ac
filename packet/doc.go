// Package packet defines the context packet: the versioned, immutable request
// envelope handed to one stage invocation.
//
// A packet is built once with Build, checked with Validate before any
// generator call, and narrowed with Project to the fields its role may see.
// Each expand-loop iteration builds a fresh packet; nothing in this package
// mutates a packet after construction.
package packet
