package membership_test

import (
	"context"
	"testing"
	"time"

	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/membership"
	"metareview/internal/services/notify"
	"metareview/internal/testutil"

	"gorm.io/gorm"
)

func newService(t *testing.T) (*membership.Service, *gorm.DB, *notify.Recorder) {
	t.Helper()
	db := testutil.DB(t)
	rec := &notify.Recorder{}
	return membership.NewService(db, testutil.Logger(t), rec, 7*24*time.Hour), db, rec
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apierr.Is(err, code) {
		t.Fatalf("unexpected error: got=%v want code=%s", err, code)
	}
}

func TestCreateProjectGrantsOwnerMembership(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	researcher := testutil.SeedUser(t, db, "ana", users.RoleResearcher)

	p, err := svc.CreateProject(ctx, researcher.ID, membership.ProjectInput{Name: "  Exercise and mood  ", Category: projects.CategoryHealth})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if p.Name != "Exercise and mood" {
		t.Fatalf("name not trimmed: %q", p.Name)
	}
	var m projects.Membership
	if err := db.Where("project_id = ? AND user_id = ?", p.ID, researcher.ID).First(&m).Error; err != nil {
		t.Fatalf("owner membership missing: %v", err)
	}
	if m.Role != projects.RoleOwner || !m.CanInvite {
		t.Fatalf("unexpected owner membership: %+v", m)
	}
}

func TestCreateProjectRejectsGuests(t *testing.T) {
	svc, db, _ := newService(t)
	guest := testutil.SeedUser(t, db, "gus", users.RoleGuest)

	_, err := svc.CreateProject(context.Background(), guest.ID, membership.ProjectInput{Name: "Nope"})
	wantCode(t, err, apierr.CodeForbidden)

	var n int64
	db.Model(&projects.Project{}).Count(&n)
	if n != 0 {
		t.Fatalf("project should not exist, found %d", n)
	}
}

func TestCreateProjectValidatesName(t *testing.T) {
	svc, db, _ := newService(t)
	admin := testutil.SeedUser(t, db, "root", users.RoleAdmin)
	long := make([]byte, projects.MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	for _, name := range []string{"", "   ", string(long)} {
		_, err := svc.CreateProject(context.Background(), admin.ID, membership.ProjectInput{Name: name})
		wantCode(t, err, apierr.CodeValidation)
	}
}

func TestJoinRequestLifecycle(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	guest := testutil.SeedUser(t, db, "guest", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	req, err := svc.RequestJoin(ctx, guest.ID, p.ID, "I can help")
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if got := rec.OfKind(notifications.KindJoinRequest); len(got) != 1 || got[0].Recipients[0] != owner.ID {
		t.Fatalf("owner not notified: %+v", got)
	}

	_, err = svc.RequestJoin(ctx, guest.ID, p.ID, "again")
	wantCode(t, err, apierr.CodeConflict)

	_, err = svc.RespondJoinRequest(ctx, guest.ID, req.ID, true)
	wantCode(t, err, apierr.CodeForbidden)

	req, err = svc.RespondJoinRequest(ctx, owner.ID, req.ID, true)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if req.Status != projects.RequestApproved {
		t.Fatalf("unexpected status %s", req.Status)
	}
	var m projects.Membership
	if err := db.Where("project_id = ? AND user_id = ?", p.ID, guest.ID).First(&m).Error; err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if m.Role != projects.RoleCollaborator {
		t.Fatalf("unexpected role %s", m.Role)
	}
	if len(rec.OfKind(notifications.KindJoinApproved)) != 1 {
		t.Fatalf("requester not notified")
	}

	_, err = svc.RespondJoinRequest(ctx, owner.ID, req.ID, false)
	wantCode(t, err, apierr.CodeInvalidState)

	_, err = svc.RequestJoin(ctx, guest.ID, p.ID, "")
	wantCode(t, err, apierr.CodeConflict)
}

func TestRejectJoinRequestCreatesNoMembership(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	guest := testutil.SeedUser(t, db, "guest", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	req, err := svc.RequestJoin(ctx, guest.ID, p.ID, "")
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if _, err := svc.RespondJoinRequest(ctx, owner.ID, req.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	var n int64
	db.Model(&projects.Membership{}).Where("user_id = ?", guest.ID).Count(&n)
	if n != 0 {
		t.Fatalf("rejected requester became a member")
	}
}

func TestInviteExistingUserAndUnknownEmail(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	bob := testutil.SeedUser(t, db, "bob", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	res, err := svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "bob", Role: projects.RoleSupervisor})
	if err != nil {
		t.Fatalf("invite bob: %v", err)
	}
	if res.Membership == nil || res.Membership.Role != projects.RoleSupervisor || res.Membership.UserID != bob.ID {
		t.Fatalf("unexpected invite result: %+v", res)
	}

	_, err = svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: bob.Email})
	wantCode(t, err, apierr.CodeConflict)

	res, err = svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "New.Person@Example.org"})
	if err != nil {
		t.Fatalf("invite email: %v", err)
	}
	if res.Invitation == nil || res.Invitation.Token == "" || res.Invitation.Email != "new.person@example.org" {
		t.Fatalf("unexpected invitation: %+v", res.Invitation)
	}
	evs := rec.OfKind(notifications.KindInvitation)
	if len(evs) != 2 || len(evs[1].Emails) != 1 || !evs[1].SendEmail {
		t.Fatalf("invitation email not queued: %+v", evs)
	}

	_, err = svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "ghost"})
	wantCode(t, err, apierr.CodeNotFound)

	_, err = svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "x@example.org", Role: projects.RoleOwner})
	wantCode(t, err, apierr.CodeValidation)
}

func TestInviteRequiresPermission(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	collab := testutil.SeedUser(t, db, "collab", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")
	testutil.AddMember(t, db, p.ID, collab.ID, projects.RoleCollaborator)

	_, err := svc.Invite(ctx, collab.ID, p.ID, membership.InviteInput{Identifier: "x@example.org"})
	wantCode(t, err, apierr.CodeForbidden)

	db.Model(&projects.Membership{}).Where("user_id = ?", collab.ID).Update("can_invite", true)
	if _, err := svc.Invite(ctx, collab.ID, p.ID, membership.InviteInput{Identifier: "x@example.org"}); err != nil {
		t.Fatalf("can_invite member should invite: %v", err)
	}
}

func TestAcceptInvitation(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	res, err := svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "carol@example.org", Role: projects.RoleSupervisor})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	carol := testutil.SeedUser(t, db, "carol", users.RoleGuest)
	mallory := testutil.SeedUser(t, db, "mallory", users.RoleGuest)

	_, err = svc.AcceptInvitation(ctx, mallory.ID, res.Invitation.Token)
	wantCode(t, err, apierr.CodeForbidden)

	m, err := svc.AcceptInvitation(ctx, carol.ID, res.Invitation.Token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if m.Role != projects.RoleSupervisor || m.ProjectID != p.ID {
		t.Fatalf("unexpected membership %+v", m)
	}
	if len(rec.OfKind(notifications.KindInvitationAccepted)) != 1 {
		t.Fatalf("inviter not notified")
	}

	_, err = svc.AcceptInvitation(ctx, carol.ID, res.Invitation.Token)
	wantCode(t, err, apierr.CodeInvalidState)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return now }
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	res, err := svc.Invite(ctx, owner.ID, p.ID, membership.InviteInput{Identifier: "late@example.org"})
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	late := testutil.SeedUser(t, db, "late", users.RoleGuest)

	now = now.Add(8 * 24 * time.Hour)
	_, err = svc.AcceptInvitation(ctx, late.ID, res.Invitation.Token)
	wantCode(t, err, apierr.CodeInvalidState)

	inv := testutil.Reload[projects.Invitation](t, db, res.Invitation.ID)
	if inv.Status != projects.InvitationExpired {
		t.Fatalf("invitation not marked expired: %s", inv.Status)
	}
}

func TestRoleChangeRemovalAndLeave(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	sup := testutil.SeedUser(t, db, "sup", users.RoleGuest)
	col := testutil.SeedUser(t, db, "col", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")
	testutil.AddMember(t, db, p.ID, sup.ID, projects.RoleSupervisor)
	testutil.AddMember(t, db, p.ID, col.ID, projects.RoleCollaborator)

	tests := []struct {
		name   string
		actor  uint
		target uint
		role   projects.Role
		code   string
	}{
		{"owner changes own record", owner.ID, owner.ID, projects.RoleSupervisor, apierr.CodeForbidden},
		{"supervisor cannot change roles", sup.ID, col.ID, projects.RoleSupervisor, apierr.CodeForbidden},
		{"owner role cannot be granted", owner.ID, col.ID, projects.RoleOwner, apierr.CodeValidation},
		{"owner promotes collaborator", owner.ID, col.ID, projects.RoleSupervisor, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeRole(ctx, tt.actor, p.ID, tt.target, membership.RoleChange{Role: tt.role})
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			wantCode(t, err, tt.code)
		})
	}

	wantCode(t, svc.RemoveMember(ctx, owner.ID, p.ID, owner.ID), apierr.CodeValidation)
	wantCode(t, svc.RemoveMember(ctx, sup.ID, p.ID, col.ID), apierr.CodeForbidden)
	wantCode(t, svc.Leave(ctx, owner.ID, p.ID), apierr.CodeForbidden)

	if err := svc.RemoveMember(ctx, owner.ID, p.ID, col.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.Leave(ctx, sup.ID, p.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	var n int64
	db.Model(&projects.Membership{}).Where("project_id = ?", p.ID).Count(&n)
	if n != 1 {
		t.Fatalf("expected only the owner left, got %d members", n)
	}
}

func TestSearchAndListMine(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	guest := testutil.SeedUser(t, db, "guest", users.RoleGuest)
	a := testutil.SeedProject(t, db, owner, "Sleep quality")
	b := testutil.SeedProject(t, db, owner, "Running economy")
	db.Model(b).Update("status", projects.StatusPaused)

	found, err := svc.Search(ctx, guest.ID, "sleep", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].Project.ID != a.ID || found[0].MemberCount != 1 || found[0].IsMember {
		t.Fatalf("unexpected search result: %+v", found)
	}
	found, _ = svc.Search(ctx, guest.ID, "running", "")
	if len(found) != 0 {
		t.Fatalf("paused projects must not be listed")
	}

	mine, err := svc.ListMine(ctx, owner.ID, membership.ProjectFilter{Status: projects.StatusActive})
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].Role != projects.RoleOwner {
		t.Fatalf("unexpected projects: %+v", mine)
	}
}

func TestGetProjectVisibility(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	admin := testutil.SeedUser(t, db, "root", users.RoleAdmin)
	outsider := testutil.SeedUser(t, db, "out", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Sleep")

	d, err := svc.GetProject(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("owner view: %v", err)
	}
	if d.Policy == nil || d.Policy.Role != projects.RoleOwner || len(d.Members) != 1 {
		t.Fatalf("unexpected detail: %+v", d)
	}
	if _, err := svc.GetProject(ctx, admin.ID, p.ID); err != nil {
		t.Fatalf("admin view: %v", err)
	}
	_, err = svc.GetProject(ctx, outsider.ID, p.ID)
	wantCode(t, err, apierr.CodeForbidden)
}

func TestOverview(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	ana := testutil.SeedUser(t, db, "ana", users.RoleResearcher)
	ben := testutil.SeedUser(t, db, "ben", users.RoleResearcher)
	gus := testutil.SeedUser(t, db, "gus", users.RoleGuest)

	mine := testutil.SeedProject(t, db, ana, "Sleep")
	other := testutil.SeedProject(t, db, ben, "Diet")
	testutil.AddMember(t, db, other.ID, ana.ID, projects.RoleCollaborator)
	if err := db.Model(other).Update("category", projects.CategoryEducation).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RequestJoin(ctx, gus.ID, mine.ID, "please"); err != nil {
		t.Fatal(err)
	}
	// requests to projects ana does not lead are not counted
	if _, err := svc.RequestJoin(ctx, gus.ID, other.ID, "please"); err != nil {
		t.Fatal(err)
	}

	o, err := svc.Overview(ctx, ana.ID)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if o.TotalProjects != 2 || o.Owned != 1 || o.Collaborating != 1 || o.PendingRequests != 1 {
		t.Fatalf("unexpected overview: %+v", o)
	}
	if len(o.Recent) != 2 || len(o.ByCategory) != 2 || o.ByCategory[0].Percent != 50 {
		t.Fatalf("unexpected breakdown: %+v", o)
	}
	if len(o.ByStatus) != 1 || o.ByStatus[0].Name != "ACTIVE" || o.ByStatus[0].Percent != 100 {
		t.Fatalf("unexpected status breakdown: %+v", o.ByStatus)
	}

	empty, err := svc.Overview(ctx, gus.ID)
	if err != nil || empty.TotalProjects != 0 || len(empty.ByCategory) != 0 {
		t.Fatalf("empty overview = %+v, %v", empty, err)
	}
}
