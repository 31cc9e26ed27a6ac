// Package policy evaluates business rules that a structural schema cannot
// express.
//
// The rule set is closed. Each Rule is bound to one stage output contract and
// inspects the decoded payload together with the originating packet. New
// rules are added as new cases in rules.go, never through configuration or
// scripting.
//
// Policy runs only after schema validation succeeds, so rules may assume the
// payload has the shape its contract declares.
package policy
