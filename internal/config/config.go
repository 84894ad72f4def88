package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort               = "3001"
	defaultDatabaseURL        = "productores.db"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultJWTAccessTTL       = "24h"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultStorageDriver      = "s3"
	defaultSignedURLTTL       = "1h"
	defaultListingSignedTTL   = "10m"
	defaultMaxUploadSize      = "52428800"
	defaultMemoryStoreBaseURL = "http://localhost:3001/objects/"
)

const (
	StorageS3     = "s3"
	StorageMemory = "memory"
)

type Config struct {
	AppEnv string
	Port   string

	DatabaseURL    string
	DBMaxOpenConns int
	DBDebug        bool

	JWTSecret    string
	JWTAccessTTL time.Duration

	LogLevel  string
	LogFormat string

	CORSAllowedOrigins []string

	StorageDriver      string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Region           string
	S3Endpoint         string
	MemoryStoreBaseURL string

	SignedURLTTL        time.Duration
	ListingSignedURLTTL time.Duration
	MaxUploadSize       int64

	DropboxAppKey       string
	DropboxAppSecret    string
	DropboxRefreshToken string
	DropboxAccessToken  string

	// Sync routes accept this static token instead of a user JWT when set.
	SyncAPIToken   string
	SyncAllowedIPs []string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)
	cfg.Port = strings.TrimSpace(getEnv("PORT", defaultPort))

	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.DBDebug = parseBoolEnv("DB_DEBUG", "false")
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.LogLevel = strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel))
	cfg.LogFormat = strings.TrimSpace(getEnv("LOG_FORMAT", defaultLogFormat))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", defaultStorageDriver)))
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.S3Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET_NAME"))
	cfg.S3Region = strings.TrimSpace(os.Getenv("S3_REGION"))
	cfg.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	cfg.MemoryStoreBaseURL = strings.TrimSpace(getEnv("MEMORY_STORE_BASE_URL", defaultMemoryStoreBaseURL))

	cfg.DropboxAppKey = strings.TrimSpace(os.Getenv("DROPBOX_APP_KEY"))
	cfg.DropboxAppSecret = strings.TrimSpace(os.Getenv("DROPBOX_APP_SECRET"))
	cfg.DropboxRefreshToken = strings.TrimSpace(os.Getenv("DROPBOX_REFRESH_TOKEN"))
	cfg.DropboxAccessToken = strings.TrimSpace(os.Getenv("DROPBOX_ACCESS_TOKEN"))
	cfg.SyncAPIToken = strings.TrimSpace(os.Getenv("SYNC_API_TOKEN"))
	cfg.SyncAllowedIPs = splitList(os.Getenv("SYNC_ALLOWED_IPS"))

	var err error
	if cfg.DBMaxOpenConns, err = parseIntEnv("DB_MAX_OPEN_CONNS", "10"); err != nil {
		return nil, err
	}
	if cfg.JWTAccessTTL, err = parseDurationEnv("JWT_ACCESS_TTL", defaultJWTAccessTTL); err != nil {
		return nil, err
	}
	if cfg.SignedURLTTL, err = parseDurationEnv("SIGNED_URL_TTL", defaultSignedURLTTL); err != nil {
		return nil, err
	}
	if cfg.ListingSignedURLTTL, err = parseDurationEnv("LISTING_SIGNED_URL_TTL", defaultListingSignedTTL); err != nil {
		return nil, err
	}
	maxUpload, err := parseIntEnv("MAX_UPLOAD_SIZE", defaultMaxUploadSize)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadSize = int64(maxUpload)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be > 0")
	}
	if cfg.SignedURLTTL <= 0 || cfg.ListingSignedURLTTL <= 0 {
		return fmt.Errorf("SIGNED_URL_TTL and LISTING_SIGNED_URL_TTL must be > 0")
	}
	// presigned S3 URLs cannot outlive seven days
	if cfg.SignedURLTTL > 7*24*time.Hour || cfg.ListingSignedURLTTL > 7*24*time.Hour {
		return fmt.Errorf("signed url ttl must be at most 168h")
	}
	if cfg.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be > 0")
	}

	switch cfg.StorageDriver {
	case StorageS3:
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return fmt.Errorf("S3_BUCKET_NAME and S3_REGION are required when STORAGE_DRIVER=s3")
		}
	case StorageMemory:
		if cfg.MemoryStoreBaseURL == "" {
			return fmt.Errorf("MEMORY_STORE_BASE_URL must not be empty")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of: s3, memory")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.StorageDriver == StorageMemory {
			return fmt.Errorf("in prod/release STORAGE_DRIVER=memory is not allowed")
		}
		if cfg.SyncAPIToken != "" && len(cfg.SyncAPIToken) < 32 {
			return fmt.Errorf("in prod/release SYNC_API_TOKEN must be at least 32 chars")
		}
	}
	return nil
}

// IsProdLike reports whether the config describes a production deployment.
func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
