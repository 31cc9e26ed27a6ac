package loop

import (
	"fmt"

	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// Kind is the artifact an expand loop accumulates.
type Kind string

const (
	Starter Kind = "starter"
	Test    Kind = "test"
	Lesson  Kind = "lesson"
)

// Stage returns the expand stage that produces sections of this kind.
func (k Kind) Stage() stage.Name {
	switch k {
	case Starter:
		return stage.StarterExpand
	case Test:
		return stage.TestExpand
	case Lesson:
		return stage.LessonExpand
	default:
		return stage.Name(string(k) + "-expand")
	}
}

// Role returns the packet role for the kind's stage.
func (k Kind) Role() packet.Role {
	return packet.Role(k.Stage())
}

// Tier is a coarse difficulty band derived from curriculum depth.
type Tier string

const (
	Foundation   Tier = "foundation"
	Intermediate Tier = "intermediate"
	Advanced     Tier = "advanced"
)

// TierForDepth maps depth 0-1 to Foundation, 2-3 to Intermediate, and 4 or
// more to Advanced.
func TierForDepth(depth int) Tier {
	switch {
	case depth <= 1:
		return Foundation
	case depth <= 3:
		return Intermediate
	default:
		return Advanced
	}
}

// TierCaps holds the maximum number of sections per tier.
type TierCaps struct {
	Foundation   int `json:"foundation" yaml:"foundation"`
	Intermediate int `json:"intermediate" yaml:"intermediate"`
	Advanced     int `json:"advanced" yaml:"advanced"`
}

// For returns the cap for tier.
func (c TierCaps) For(tier Tier) int {
	switch tier {
	case Intermediate:
		return c.Intermediate
	case Advanced:
		return c.Advanced
	default:
		return c.Foundation
	}
}

// Caps holds iteration caps per loop kind.
type Caps map[Kind]TierCaps

// DefaultCaps returns the built-in caps.
func DefaultCaps() Caps {
	return Caps{
		Starter: {Foundation: 3, Intermediate: 5, Advanced: 8},
		Test:    {Foundation: 3, Intermediate: 5, Advanced: 8},
		Lesson:  {Foundation: 4, Intermediate: 6, Advanced: 10},
	}
}

// For returns the cap for kind at the given curriculum depth. Kinds without
// an entry fall back to the default caps.
func (c Caps) For(kind Kind, depth int) int {
	tc, ok := c[kind]
	if !ok {
		tc = DefaultCaps()[kind]
	}
	return tc.For(TierForDepth(depth))
}

// Validate checks that every configured cap is positive.
func (c Caps) Validate() error {
	for kind, tc := range c {
		for _, tier := range []Tier{Foundation, Intermediate, Advanced} {
			if n := tc.For(tier); n < 1 {
				return fmt.Errorf("loop cap for %s/%s must be at least 1, got %d", kind, tier, n)
			}
		}
	}
	return nil
}
