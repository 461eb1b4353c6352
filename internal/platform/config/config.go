package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server and worker read from the environment,
// so main stays lean.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string
	RedisURL    string

	Uploads UploadsConfig
	SMTP    SMTPConfig

	// BaseURL is used to build tracking links embedded in notifications.
	BaseURL string

	ShutdownTimeout time.Duration
}

// UploadsConfig configures the MinIO-backed upload store.
type UploadsConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SMTPConfig configures the notification worker's mail delivery.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          envOr("VISAFLOW_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		Uploads: UploadsConfig{
			Endpoint:  envOr("UPLOADS_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("UPLOADS_ACCESS_KEY"),
			SecretKey: os.Getenv("UPLOADS_SECRET_KEY"),
			Bucket:    envOr("UPLOADS_BUCKET", "visaflow-uploads"),
			UseSSL:    os.Getenv("UPLOADS_USE_SSL") == "true",
		},
		SMTP: SMTPConfig{
			Host: envOr("SMTP_HOST", "localhost"),
			Port: envIntOr("SMTP_PORT", 1025),
			From: envOr("SMTP_FROM", "noreply@visaflow.example"),
		},
		BaseURL:         envOr("VISAFLOW_BASE_URL", "http://localhost:8080"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
