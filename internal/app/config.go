package app

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/certification-backend/internal/platform/envutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string

	JWTSecretKey   string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	IdentityTimeout time.Duration
	RHFastPath      bool

	MaxAttachmentBytes int64
	MaxAttachments     int
	UploadParallelism  int
	UploadTimeout      time.Duration

	NotifyQueueSize int
	NotifyWorkers   int
	NotifyTimeout   time.Duration
	AppURL          string

	BadgeExpiryCron       string
	BadgeExpiryNoticeDays int
}

// LoadDotEnv reads .env when present. Variables already set in the process
// environment win.
func LoadDotEnv(log *logger.Logger) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		log.Warn("Ignoring unreadable .env", "error", err)
		return
	}
	log.Info("Loaded .env")
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "certification-backend"),
		Environment: envutil.String("ENVIRONMENT", "development"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:      envutil.String("JWT_ISSUER", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour),

		AllowedOrigins:  splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),
		RequestTimeout:  envutil.Duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),

		IdentityTimeout: envutil.Duration("IDENTITY_TIMEOUT", 3*time.Second),
		RHFastPath:      envutil.Bool("RH_FAST_PATH_ENABLED", false),

		MaxAttachmentBytes: envutil.Int64("MAX_ATTACHMENT_BYTES", 10<<20),
		MaxAttachments:     envutil.Int("MAX_ATTACHMENTS_PER_UPLOAD", 10),
		UploadParallelism:  envutil.Int("ATTACHMENT_UPLOAD_PARALLELISM", 4),
		UploadTimeout:      envutil.Duration("STORAGE_TIMEOUT", 30*time.Second),

		NotifyQueueSize: envutil.Int("NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:   envutil.Int("NOTIFY_WORKERS", 2),
		NotifyTimeout:   envutil.Duration("NOTIFY_TIMEOUT", 20*time.Second),
		AppURL:          envutil.String("APP_URL", ""),

		BadgeExpiryCron:       envutil.String("BADGE_EXPIRY_CRON", "0 7 * * *"),
		BadgeExpiryNoticeDays: envutil.Int("BADGE_EXPIRY_NOTICE_DAYS", 30),
	}
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY is empty; every bearer token will be rejected")
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
