package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullPacket(role Role) Packet {
	in := validInput(role)
	in.EvidenceContext = &EvidenceContext{Tests: &TestEvidence{Failing: []string{"TestWrap"}}}
	in.PolicyContext = &PolicyContext{MaxAttemptsBeforeReveal: Int(4)}
	in.ScaffoldContext = map[string]any{"exerciseTitle": "Ring buffer"}
	in.PriorLoopSections = []Section{{FilePath: "ring.go", Content: "package ring"}}
	in.CurrentSections = []Section{{FilePath: "ring_test.go", Content: "package ring"}}
	in.NextFocus = "edge cases"
	return Build(in)
}

func TestProjectIsTotalOverRoles(t *testing.T) {
	for _, role := range Roles() {
		t.Run(string(role), func(t *testing.T) {
			assert.True(t, role.Valid())
			_, err := Project(fullPacket(role))
			assert.NoError(t, err)
		})
	}
}

func TestProjectFieldSets(t *testing.T) {
	tests := []struct {
		role         Role
		wantEvidence bool
		wantLoop     bool
	}{
		{RolePlanner, false, false},
		{RoleAuthor, false, false},
		{RoleScaffold, false, false},
		{RoleStarterExpand, false, true},
		{RoleTestExpand, false, true},
		{RoleLessonExpand, false, true},
		{RoleCoach, true, true},
		{RoleReviewer, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			original := fullPacket(tt.role)
			p, err := Project(original)
			require.NoError(t, err)

			assert.Equal(t, tt.wantEvidence, p.EvidenceContext != nil)
			assert.Equal(t, tt.wantLoop, p.ScaffoldContext != nil)
			assert.Equal(t, tt.wantLoop, p.PriorLoopSections != nil)
			assert.Equal(t, tt.wantLoop, p.CurrentSections != nil)
			assert.Equal(t, tt.wantLoop, p.NextFocus != "")

			assert.Equal(t, original.PacketID, p.PacketID)
			assert.NotNil(t, p.LearnerProfile)
			assert.NotNil(t, p.PolicyContext)
			assert.NotNil(t, original.EvidenceContext, "projection must not touch the source packet")
		})
	}
}

func TestProjectUnknownRole(t *testing.T) {
	p := fullPacket(RoleScaffold)
	p.Role = "oracle"

	_, err := Project(p)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, RoleTestExpand.IsExpand())
	assert.False(t, RoleScaffold.IsExpand())
	assert.True(t, RoleReviewer.RequiresEvidence())
	assert.False(t, RolePlanner.RequiresEvidence())
	assert.False(t, Role("").Valid())
	assert.Equal(t, "coach", RoleCoach.String())
}
