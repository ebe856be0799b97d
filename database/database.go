package database

import (
	"fmt"

	"metareview/internal/domain/articles"
	"metareview/internal/domain/catalog"
	"metareview/internal/domain/notifications"
	"metareview/internal/domain/projects"
	"metareview/internal/domain/users"
	"metareview/internal/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres, migrates every domain model and seeds reference data.
func Open(dsn string, seedFields bool, log *logger.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := SeedRoles(db); err != nil {
		return nil, err
	}
	if seedFields {
		n, err := SeedFields(db)
		if err != nil {
			return nil, err
		}
		log.Info("predefined fields seeded", "created", n)
	}
	log.Info("database connected and migrated")
	return db, nil
}

func Models() []any {
	return []any{
		// identity
		&users.User{},
		&users.Profile{},
		&users.Role{},
		&users.VerificationToken{},

		// projects
		&projects.Project{},
		&projects.Membership{},
		&projects.JoinRequest{},
		&projects.Invitation{},

		// catalog
		&catalog.MetadataField{},
		&catalog.SearchTemplate{},

		// articles
		&articles.UploadedFile{},
		&articles.Article{},
		&articles.FieldAssignment{},
		&articles.ReviewComment{},
		&articles.ChangeLog{},

		&notifications.Notification{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
