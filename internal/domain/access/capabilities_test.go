package access

import (
	"testing"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/projects"
)

func TestCan(t *testing.T) {
	owner := projects.Membership{Role: projects.RoleOwner, CanInvite: true}
	sup := projects.Membership{Role: projects.RoleSupervisor}
	col := projects.Membership{Role: projects.RoleCollaborator}
	inviter := projects.Membership{Role: projects.RoleCollaborator, CanInvite: true}

	tests := []struct {
		name string
		m    projects.Membership
		cap  Capability
		want bool
	}{
		{"owner assigns fields", owner, CapAssignFields, true},
		{"supervisor cannot assign fields", sup, CapAssignFields, false},
		{"supervisor manages templates", sup, CapManageTemplates, true},
		{"supervisor reviews", sup, CapReview, true},
		{"collaborator cannot review", col, CapReview, false},
		{"collaborator uploads", col, CapUpload, true},
		{"collaborator cannot invite", col, CapInvite, false},
		{"flagged collaborator invites", inviter, CapInvite, true},
		{"owner cannot leave", owner, CapLeave, false},
		{"only owner manages fields", sup, CapManageFields, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.m, tt.cap); got != tt.want {
				t.Fatalf("Can(%s, %s) = %v, want %v", tt.m.Role, tt.cap, got, tt.want)
			}
		})
	}
}

func TestCanWorkOn(t *testing.T) {
	assignee := uint(3)
	a := articles.Article{ProjectID: 1, UploadedByID: 2, AssigneeID: &assignee}

	cases := []struct {
		m    projects.Membership
		want bool
	}{
		{projects.Membership{ProjectID: 1, UserID: 3, Role: projects.RoleCollaborator}, true},
		{projects.Membership{ProjectID: 1, UserID: 2, Role: projects.RoleCollaborator}, true},
		{projects.Membership{ProjectID: 1, UserID: 9, Role: projects.RoleCollaborator}, false},
		{projects.Membership{ProjectID: 1, UserID: 9, Role: projects.RoleSupervisor}, true},
		{projects.Membership{ProjectID: 2, UserID: 3, Role: projects.RoleOwner}, false},
	}
	for _, c := range cases {
		if got := CanWorkOn(c.m, a); got != c.want {
			t.Fatalf("CanWorkOn(%+v) = %v, want %v", c.m, got, c.want)
		}
	}
}
