package identity_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/apierr"
	"metareview/internal/services/guard"
	"metareview/internal/services/identity"
	"metareview/internal/services/notify"
	"metareview/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const secret = "test-secret"

func newService(t *testing.T) (*identity.Service, *gorm.DB, *notify.Recorder) {
	t.Helper()
	db := testutil.DB(t)
	rec := &notify.Recorder{}
	svc := identity.NewService(db, testutil.Logger(t), rec, secret, time.Hour)
	svc.SetHashCost(bcrypt.MinCost)
	return svc, db, rec
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apierr.Is(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func tokenOf(t *testing.T, db *gorm.DB, userID uint, typ users.TokenType) string {
	t.Helper()
	var vt users.VerificationToken
	if err := db.Where("user_id = ? AND type = ?", userID, typ).First(&vt).Error; err != nil {
		t.Fatalf("load %s token: %v", typ, err)
	}
	return vt.Token
}

func TestRegisterVerifyLogin(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, identity.Registration{
		Username:  "ana",
		Email:     "Ana@Example.org",
		Password:  "passw0rd",
		FirstName: "Ana",
		LastName:  "Lopez",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.IsVerified || u.Email != "ana@example.org" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.RoleName() != users.RoleGuest {
		t.Fatalf("role = %q, want guest", u.RoleName())
	}
	if u.Profile.LastName != "LOPEZ" {
		t.Fatalf("last name = %q, want upper-cased", u.Profile.LastName)
	}

	evs := rec.Events()
	if len(evs) != 1 || !evs[0].SendEmail || evs[0].Emails[0] != "ana@example.org" {
		t.Fatalf("verification mail not published: %+v", evs)
	}
	token := tokenOf(t, db, u.ID, users.TokenEmailVerification)
	if !strings.HasSuffix(evs[0].Link, token) {
		t.Fatalf("link %q does not carry the token", evs[0].Link)
	}

	_, err = svc.Login(ctx, "ana", "passw0rd")
	wantCode(t, err, apierr.CodeForbidden)

	if err := svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	wantCode(t, svc.VerifyEmail(ctx, token), apierr.CodeValidation)

	for _, login := range []string{"ana", "ANA@example.org"} {
		sess, err := svc.Login(ctx, login, "passw0rd")
		if err != nil {
			t.Fatalf("Login(%s): %v", login, err)
		}
		parsed, err := jwt.Parse(sess.Token, func(*jwt.Token) (any, error) { return []byte(secret), nil })
		if err != nil || !parsed.Valid {
			t.Fatalf("token invalid: %v", err)
		}
		claims := parsed.Claims.(jwt.MapClaims)
		if uint(claims["user_id"].(float64)) != u.ID || claims["role"] != "guest" {
			t.Fatalf("unexpected claims: %v", claims)
		}
	}

	_, err = svc.Login(ctx, "ana", "wrong-pass1")
	wantCode(t, err, apierr.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody", "passw0rd")
	wantCode(t, err, apierr.CodeUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	testutil.SeedUser(t, db, "taken", users.RoleGuest)

	cases := []struct {
		name string
		in   identity.Registration
		code string
	}{
		{"weak password", identity.Registration{Username: "bob", Email: "bob@example.org", Password: "onlyletters"}, apierr.CodeValidation},
		{"short password", identity.Registration{Username: "bob", Email: "bob@example.org", Password: "a1"}, apierr.CodeValidation},
		{"bad email", identity.Registration{Username: "bob", Email: "bob@", Password: "passw0rd"}, apierr.CodeValidation},
		{"bad username", identity.Registration{Username: "b", Email: "bob@example.org", Password: "passw0rd"}, apierr.CodeValidation},
		{"username taken", identity.Registration{Username: "taken", Email: "bob@example.org", Password: "passw0rd"}, apierr.CodeConflict},
		{"email taken", identity.Registration{Username: "bob", Email: "TAKEN@example.org", Password: "passw0rd"}, apierr.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.in)
			wantCode(t, err, tc.code)
		})
	}
}

func TestRegisterWithInvitationIsVerified(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	p := testutil.SeedProject(t, db, owner, "Trials")
	inv := projects.Invitation{
		ProjectID:   p.ID,
		InvitedByID: owner.ID,
		Email:       "guest@example.org",
		Token:       "5f0c7a2e-3a55-4c38-9b1c-6c0e0f0d1a11",
		Role:        projects.RoleCollaborator,
		Status:      projects.InvitationPending,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatal(err)
	}

	u, err := svc.Register(ctx, identity.Registration{
		Username: "guest", Email: "guest@example.org", Password: "passw0rd", InvitationToken: inv.Token,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !u.IsVerified {
		t.Fatal("invited registration should be verified")
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("no verification mail expected, got %+v", rec.Events())
	}
	if _, err := svc.Login(ctx, "guest", "passw0rd"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// a token for another address does not verify
	other, err := svc.Register(ctx, identity.Registration{
		Username: "other", Email: "other@example.org", Password: "passw0rd", InvitationToken: inv.Token,
	})
	if err != nil {
		t.Fatalf("Register other: %v", err)
	}
	if other.IsVerified {
		t.Fatal("mismatched invitation must not verify")
	}
}

func TestPasswordReset(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "carla", users.RoleResearcher)

	if err := svc.RequestPasswordReset(ctx, "unknown@example.org"); err != nil {
		t.Fatalf("unknown address must not fail: %v", err)
	}
	if len(rec.Events()) != 0 {
		t.Fatal("no mail for unknown address")
	}

	if err := svc.RequestPasswordReset(ctx, u.Email); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := tokenOf(t, db, u.ID, users.TokenPasswordReset)

	wantCode(t, svc.ResetPassword(ctx, token, "short"), apierr.CodeValidation)
	if err := svc.ResetPassword(ctx, token, "n3wpassword"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	wantCode(t, svc.ResetPassword(ctx, token, "an0therpass"), apierr.CodeValidation)

	if _, err := svc.Login(ctx, "carla", "n3wpassword"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestResetTokenExpires(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "dario", users.RoleResearcher)

	if err := svc.RequestPasswordReset(ctx, u.Email); err != nil {
		t.Fatal(err)
	}
	token := tokenOf(t, db, u.ID, users.TokenPasswordReset)
	svc.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	wantCode(t, svc.ResetPassword(ctx, token, "n3wpassword"), apierr.CodeValidation)
}

func TestChangePassword(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "elsa", users.RoleResearcher)

	wantCode(t, svc.ChangePassword(ctx, u.ID, "wrong", "n3wpassword"), apierr.CodeUnauthorized)
	wantCode(t, svc.ChangePassword(ctx, u.ID, testutil.Password, "weak"), apierr.CodeValidation)
	if err := svc.ChangePassword(ctx, u.ID, testutil.Password, "n3wpassword"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := svc.Login(ctx, "elsa", "n3wpassword"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestSignInWithGoogle(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()

	first, err := svc.SignInWithGoogle(ctx, identity.GoogleIdentity{
		Sub: "g-1", Email: "fresh@example.org", GivenName: "Fresh", FamilyName: "User",
	})
	if err != nil {
		t.Fatalf("SignInWithGoogle: %v", err)
	}
	if first.User.Username != "fresh" || !first.User.IsVerified || first.User.RoleName() != users.RoleGuest {
		t.Fatalf("unexpected google user: %+v", first.User)
	}
	again, err := svc.SignInWithGoogle(ctx, identity.GoogleIdentity{Sub: "g-1", Email: "fresh@example.org"})
	if err != nil || again.User.ID != first.User.ID {
		t.Fatalf("expected same account, got %v, %v", again, err)
	}

	// collision on the derived username
	testutil.SeedUser(t, db, "local", users.RoleGuest)
	other, err := svc.SignInWithGoogle(ctx, identity.GoogleIdentity{Sub: "g-2", Email: "local@elsewhere.org"})
	if err != nil {
		t.Fatal(err)
	}
	if other.User.Username != "local1" {
		t.Fatalf("username = %q, want local1", other.User.Username)
	}

	// existing local account is linked by email
	linked, err := svc.SignInWithGoogle(ctx, identity.GoogleIdentity{Sub: "g-3", Email: "local@example.org"})
	if err != nil {
		t.Fatal(err)
	}
	got := testutil.Reload[users.User](t, db, linked.User.ID)
	if got.GoogleSub == nil || *got.GoogleSub != "g-3" {
		t.Fatalf("google subject not linked: %+v", got)
	}
	if _, err := svc.Login(ctx, "local", "anything1"); !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("local password must still be checked, got %v", err)
	}

	_, err = svc.SignInWithGoogle(ctx, identity.GoogleIdentity{Sub: "", Email: "x@example.org"})
	wantCode(t, err, apierr.CodeUnauthorized)
}

func TestAdministration(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	admin := testutil.SeedUser(t, db, "root", users.RoleAdmin)
	res := testutil.SeedUser(t, db, "res", users.RoleResearcher)
	guest := testutil.SeedUser(t, db, "guest", users.RoleGuest)

	_, err := svc.Dashboard(ctx, res.ID)
	wantCode(t, err, apierr.CodeForbidden)
	_, err = svc.ListUsers(ctx, guest.ID, identity.UserFilter{})
	wantCode(t, err, apierr.CodeForbidden)

	d, err := svc.Dashboard(ctx, admin.ID)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalUsers != 3 || d.TotalRoles != 3 || d.UsersPerRole["guest"] != 1 {
		t.Fatalf("unexpected dashboard: %+v", d)
	}

	list, err := svc.ListUsers(ctx, admin.ID, identity.UserFilter{Role: users.RoleResearcher})
	if err != nil || len(list) != 1 || list[0].ID != res.ID {
		t.Fatalf("ListUsers by role = %v, %v", list, err)
	}
	list, err = svc.ListUsers(ctx, admin.ID, identity.UserFilter{Query: "GUE"})
	if err != nil || len(list) != 1 || list[0].ID != guest.ID {
		t.Fatalf("ListUsers by query = %v, %v", list, err)
	}

	u, err := svc.AssignRole(ctx, admin.ID, guest.ID, users.RoleResearcher)
	if err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if !u.CanCreateProjects() {
		t.Fatal("promoted user should create projects")
	}
	stored, err := guard.User(ctx, db, guest.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Profile == nil || stored.Profile.Role == nil || stored.Profile.Role.Name != users.RoleResearcher {
		t.Fatalf("role change not persisted: %+v", stored.Profile)
	}
	if !stored.CanCreateProjects() {
		t.Fatal("reloaded user should create projects")
	}
	_, err = svc.AssignRole(ctx, admin.ID, admin.ID, users.RoleGuest)
	wantCode(t, err, apierr.CodeValidation)
	_, err = svc.AssignRole(ctx, admin.ID, guest.ID, "superuser")
	wantCode(t, err, apierr.CodeValidation)

	roles, err := svc.ListRoles(ctx, admin.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range roles {
		want := map[users.RoleName]int64{users.RoleAdmin: 1, users.RoleResearcher: 2, users.RoleGuest: 0}[r.Name]
		if r.Users != want {
			t.Fatalf("role %s has %d users, want %d", r.Name, r.Users, want)
		}
	}

	guestRole := roles[1]
	if guestRole.Name != users.RoleGuest {
		t.Fatalf("roles not ordered by name: %+v", roles)
	}
	_, err = svc.UpdateRolePermissions(ctx, admin.ID, guestRole.ID, []string{"project.join", "nuke"})
	wantCode(t, err, apierr.CodeValidation)
	r, err := svc.UpdateRolePermissions(ctx, admin.ID, guestRole.ID, []string{"project.join", "project.create", "project.join"})
	if err != nil {
		t.Fatalf("UpdateRolePermissions: %v", err)
	}
	if len(r.Permissions) != 2 || r.Permissions[0] != "project.create" {
		t.Fatalf("permissions = %v", r.Permissions)
	}

	if err := svc.SetActive(ctx, admin.ID, res.ID, false); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Login(ctx, "res", testutil.Password)
	wantCode(t, err, apierr.CodeForbidden)
}

func TestMe(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, db, "owner", users.RoleResearcher)
	col := testutil.SeedUser(t, db, "col", users.RoleGuest)
	p := testutil.SeedProject(t, db, owner, "Trials")
	testutil.AddMember(t, db, p.ID, col.ID, projects.RoleCollaborator)

	me, err := svc.Me(ctx, col.ID)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.User.RoleName() != users.RoleGuest || len(me.Memberships) != 1 {
		t.Fatalf("unexpected me: %+v", me)
	}
	if me.Memberships[0].Project == nil || me.Memberships[0].Project.Name != "Trials" {
		t.Fatalf("project not preloaded: %+v", me.Memberships[0])
	}
	_, err = svc.Me(ctx, 9999)
	wantCode(t, err, apierr.CodeNotFound)
}
