package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	AppName        string
	Port           string
	AllowedOrigins []string
	LogLevel       string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPass     string
	DBName     string
	DBSSLMode  string
	RedisURL   string
	SentryDSN  string
	Release    string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryURL          string
	CloudinaryUploadFolder string

	JWTSecret     string
	JWTTTL        time.Duration
	SessionCookie string

	SendgridAPIKey string
	MailFrom       string

	AdminEmail    string
	AdminPassword string

	RateLimitContact      time.Duration
	RateLimitGuardian     time.Duration
	RateLimitLogin        time.Duration
	NotificationRetention time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		AppName:  getEnv("APP_NAME", "School Portal"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBUser:    getEnv("DB_USER", "postgres"),
		DBPass:    os.Getenv("DB_PASS"),
		DBName:    getEnv("DB_NAME", "school_portal"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),
		RedisURL:  os.Getenv("REDIS_URL"),
		SentryDSN: os.Getenv("SENTRY_DSN"),
		Release:   getEnv("RELEASE", "dev"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryURL:          os.Getenv("CLOUDINARY_URL"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "school_portal"),

		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		SessionCookie: getEnv("SESSION_COOKIE", "portal_session"),

		SendgridAPIKey: os.Getenv("SENDGRID_API_KEY"),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@school.local"),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@school.local"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"))

	var err error
	if cfg.JWTTTL, err = parseDuration(getEnv("JWT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.RateLimitContact, err = parseDuration(getEnv("RATE_LIMIT_CONTACT", "1m")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_CONTACT: %w", err)
	}
	if cfg.RateLimitGuardian, err = parseDuration(getEnv("RATE_LIMIT_GUARDIAN", "10s")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_GUARDIAN: %w", err)
	}
	if cfg.RateLimitLogin, err = parseDuration(getEnv("RATE_LIMIT_LOGIN", "2s")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_LOGIN: %w", err)
	}
	if cfg.NotificationRetention, err = parseDuration(getEnv("NOTIFICATION_RETENTION", "2160h")); err != nil {
		return nil, fmt.Errorf("invalid NOTIFICATION_RETENTION: %w", err)
	}

	if cfg.IsProduction() && cfg.JWTSecret == "change-me" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DSN builds the postgres connection string used by gorm and goose.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
