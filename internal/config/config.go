package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port        string
	Environment string

	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	PostgresDSN string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Access and refresh tokens are signed with independent secrets so
	// compromise of one does not compromise the other.
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	CORSOrigins   []string
	SecureCookies bool

	LoginMaxAttempts int
	LoginCooldown    time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getenv("PORT", "8080"),
		Environment: getenv("APP_ENV", "development"),

		MongoURI: getenv("MONGO_URI", ""),
		MongoDB:  getenv("MONGO_DB", "vidtube"),

		RedisAddr:     getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		PostgresDSN: getenv("POSTGRES_DSN", ""),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "vidtube-assets"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",

		AccessTokenSecret:  getenv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getenv("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     getdur("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getdur("REFRESH_TOKEN_TTL", 10*24*time.Hour),

		CORSOrigins:   getlist("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"),
		SecureCookies: getenv("SECURE_COOKIES", "false") == "true",

		LoginMaxAttempts: getint("LOGIN_MAX_ATTEMPTS", 10),
		LoginCooldown:    getdur("LOGIN_COOLDOWN", 15*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getdur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getlist(key, fallback string) []string {
	raw := getenv(key, fallback)
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
