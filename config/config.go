package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment (or a local .env file).
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080"`

	DBURL     string        `envconfig:"DB_URL" required:"true"`
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`
	PublicURL  string `envconfig:"PUBLIC_URL" default:"http://localhost:5173"`

	InvitationTTL time.Duration `envconfig:"INVITATION_TTL" default:"168h"`
	MaxUploadMB   int64         `envconfig:"MAX_UPLOAD_MB" default:"20"`
	NotifyBuffer  int           `envconfig:"NOTIFY_BUFFER" default:"256"`
	SeedFields    bool          `envconfig:"SEED_PREDEFINED_FIELDS" default:"true"`

	// local | s3
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"local"`
	StorageDir    string `envconfig:"STORAGE_DIR" default:"./uploads"`
	S3Endpoint    string `envconfig:"S3_ENDPOINT"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key         string `envconfig:"S3_KEY"`
	S3Secret      string `envconfig:"S3_SECRET"`
	S3Bucket      string `envconfig:"S3_BUCKET"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASS"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	GoogleClientID         string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL      string `envconfig:"GOOGLE_REDIRECT_URL"`
	GoogleFrontendRedirect string `envconfig:"GOOGLE_FRONTEND_REDIRECT"`
}

// GoogleEnabled reports whether Google sign-in is fully configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
