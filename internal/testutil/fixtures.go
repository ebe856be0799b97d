package testutil

import (
	"testing"
	"time"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/catalog"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const Password = "secret123"

func SeedUser(tb testing.TB, db *gorm.DB, username string, role users.RoleName) *users.User {
	tb.Helper()
	var r users.Role
	if err := db.Where("name = ?", role).First(&r).Error; err != nil {
		tb.Fatalf("load role %s: %v", role, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}
	pw := string(hash)
	u := users.User{
		Username:     username,
		Email:        username + "@example.org",
		Password:     &pw,
		AuthProvider: "local",
		IsVerified:   true,
		IsActive:     true,
		Profile:      &users.Profile{FirstName: username, LastName: "TEST", RoleID: &r.ID},
	}
	if err := db.Create(&u).Error; err != nil {
		tb.Fatalf("create user %s: %v", username, err)
	}
	u.Profile.Role = &r
	return &u
}

func SeedProject(tb testing.TB, db *gorm.DB, owner *users.User, name string) *projects.Project {
	tb.Helper()
	p := projects.Project{
		Name:     name,
		Category: projects.CategoryHealth,
		Status:   projects.StatusActive,
		OwnerID:  owner.ID,
	}
	if err := db.Create(&p).Error; err != nil {
		tb.Fatalf("create project: %v", err)
	}
	AddMember(tb, db, p.ID, owner.ID, projects.RoleOwner)
	return &p
}

func AddMember(tb testing.TB, db *gorm.DB, projectID, userID uint, role projects.Role) projects.Membership {
	tb.Helper()
	m := projects.Membership{
		UserID:    userID,
		ProjectID: projectID,
		Role:      role,
		CanInvite: role == projects.RoleOwner,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(&m).Error; err != nil {
		tb.Fatalf("add member: %v", err)
	}
	return m
}

func SeedField(tb testing.TB, db *gorm.DB, code string, dt catalog.DataType, projectID *uint) catalog.MetadataField {
	tb.Helper()
	f := catalog.MetadataField{
		Name:      code,
		Code:      code,
		Category:  catalog.CategoryResults,
		DataType:  dt,
		ProjectID: projectID,
		Active:    true,
	}
	if dt == catalog.TypeOptions {
		f.Options = []string{"Low", "High"}
	}
	if err := db.Create(&f).Error; err != nil {
		tb.Fatalf("create field %s: %v", code, err)
	}
	return f
}

func SeedArticle(tb testing.TB, db *gorm.DB, projectID, uploaderID uint, key string) *articles.Article {
	tb.Helper()
	a := articles.Article{
		ProjectID:    projectID,
		UploadedByID: uploaderID,
		CitationKey:  key,
		Title:        "Article " + key,
		Status:       articles.StatusWaiting,
	}
	if err := db.Create(&a).Error; err != nil {
		tb.Fatalf("create article %s: %v", key, err)
	}
	return &a
}

func Reload[T any](tb testing.TB, db *gorm.DB, id uint) T {
	tb.Helper()
	var v T
	if err := db.First(&v, id).Error; err != nil {
		tb.Fatalf("reload %T %d: %v", v, id, err)
	}
	return v
}
