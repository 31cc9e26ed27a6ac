package packet

import (
	"errors"
	"fmt"
)

// Role selects the stage a packet is addressed to.
type Role string

const (
	RoleScaffold      Role = "scaffold"
	RoleStarterExpand Role = "starter-expand"
	RoleTestExpand    Role = "test-expand"
	RoleLessonExpand  Role = "lesson-expand"
	RoleCoach         Role = "coach"
	RoleReviewer      Role = "reviewer"
	RolePlanner       Role = "planner"
	RoleAuthor        Role = "author"
)

// ErrUnknownRole is returned when a role outside the closed set is projected.
var ErrUnknownRole = errors.New("unknown role")

// Roles returns every known role.
func Roles() []Role {
	return []Role{
		RoleScaffold, RoleStarterExpand, RoleTestExpand, RoleLessonExpand,
		RoleCoach, RoleReviewer, RolePlanner, RoleAuthor,
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleScaffold, RoleStarterExpand, RoleTestExpand, RoleLessonExpand,
		RoleCoach, RoleReviewer, RolePlanner, RoleAuthor:
		return true
	}
	return false
}

// IsExpand reports whether r drives an expand loop.
func (r Role) IsExpand() bool {
	return r == RoleStarterExpand || r == RoleTestExpand || r == RoleLessonExpand
}

// RequiresEvidence reports whether r may only run against a real attempt.
func (r Role) RequiresEvidence() bool {
	return r == RoleCoach || r == RoleReviewer
}

func (r Role) String() string {
	return string(r)
}

// Project returns a copy of p holding only the top-level fields p.Role may
// see. Planning and authoring roles never receive evidence; expand roles also
// receive the loop fields; coach and reviewer receive everything.
func Project(p Packet) (Packet, error) {
	switch {
	case p.Role == RoleCoach || p.Role == RoleReviewer:
		return p, nil
	case p.Role.IsExpand():
		p.EvidenceContext = nil
		return p, nil
	case p.Role == RoleScaffold || p.Role == RolePlanner || p.Role == RoleAuthor:
		p.EvidenceContext = nil
		p.ScaffoldContext = nil
		p.PriorLoopSections = nil
		p.CurrentSections = nil
		p.NextFocus = ""
		return p, nil
	default:
		return Packet{}, fmt.Errorf("%w: %q", ErrUnknownRole, p.Role)
	}
}
