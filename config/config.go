package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	DatabaseURL       string
	DatabaseTimeout   time.Duration
	JWTSecretKey      string
	ServerPort        int
	LogLevel          slog.Level
	SyncCron          string
	LockTimeout       time.Duration
	BracketCacheTTL   time.Duration
	CORSAllowedOrigin []string
	R2                R2Config
}

// R2Config is optional; the standings archive is off unless every field is set.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != "" && c.PublicBaseURL != ""
}

// Load reads the configuration from the environment. A .env file, when
// present, is loaded first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := strconv.Atoi(getenv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		LogLevel:     level,
		SyncCron:     strings.TrimSpace(os.Getenv("SYNC_CRON")),
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"DATABASE_TIMEOUT", "5s", &cfg.DatabaseTimeout},
		{"LOCK_TIMEOUT", "10s", &cfg.LockTimeout},
		{"BRACKET_CACHE_TTL", "30s", &cfg.BracketCacheTTL},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getenv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s environment variable: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}

	for _, origin := range strings.Split(getenv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigin = append(cfg.CORSAllowedOrigin, origin)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
