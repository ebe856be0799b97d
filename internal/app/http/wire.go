package routes

import (
	"time"

	adminapi "metareview/internal/api/admin"
	articlesapi "metareview/internal/api/articles"
	authapi "metareview/internal/api/auth"
	catalogapi "metareview/internal/api/catalog"
	notificationsapi "metareview/internal/api/notifications"
	projectsapi "metareview/internal/api/projects"
	reviewapi "metareview/internal/api/review"
	usersapi "metareview/internal/api/users"
	"metareview/internal/infra/storage"
	"metareview/internal/pkg/logger"
	"metareview/internal/services/catalog"
	"metareview/internal/services/identity"
	"metareview/internal/services/library"
	"metareview/internal/services/membership"
	"metareview/internal/services/notify"
	"metareview/internal/services/review"

	"gorm.io/gorm"
)

type Options struct {
	JWTSecret      string
	JWTTTL         time.Duration
	InvitationTTL  time.Duration
	MaxUploadBytes int64
	// Google is nil when Google sign-in is not configured.
	Google *authapi.Google
}

// Wire builds every service and handler on top of db.
func Wire(db *gorm.DB, log *logger.Logger, pub notify.Publisher, store storage.Store, o Options) Deps {
	ident := identity.NewService(db, log, pub, o.JWTSecret, o.JWTTTL)
	members := membership.NewService(db, log, pub, o.InvitationTTL)
	cat := catalog.NewService(db, log, pub)
	lib := library.NewService(db, log, pub, store)
	rev := review.NewService(db, log, pub)

	return Deps{
		DB:            db,
		Log:           log,
		JWTSecret:     []byte(o.JWTSecret),
		Auth:          authapi.New(ident, log, o.Google),
		Users:         usersapi.New(ident, members, log),
		Admin:         adminapi.New(ident, log),
		Projects:      projectsapi.New(members, log),
		Articles:      articlesapi.New(lib, log, o.MaxUploadBytes),
		Catalog:       catalogapi.New(cat, rev, log),
		Review:        reviewapi.New(rev, log),
		Notifications: notificationsapi.New(notify.NewInbox(db), log),
	}
}
