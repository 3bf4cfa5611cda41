// Package config loads process configuration from the environment.
//
// LOADING ORDER:
//  1. godotenv.Load() reads a .env file from the working directory, if any.
//     Variables already present in the environment win over the file.
//  2. Each field is read through a small typed helper with a default.
//  3. Validate() rejects combinations the server cannot start with.
//
// Config is built once in main and passed down by value. Nothing else in the
// module reads os.Getenv.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Mail holds the SMTP relay settings.
type Mail struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether relay credentials were supplied.
func (m Mail) Enabled() bool {
	return m.User != "" && m.Password != ""
}

// Config is the full set of settings for cmd/server.
type Config struct {
	Port int

	StoreDriver   string
	MongoURI      string
	MongoDatabase string
	SQLitePath    string

	CredentialsFile   string
	FirebaseProjectID string

	Mail Mail

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the environment into a Config.
// A missing .env file is not an error; it is logged at Warn.
func Load(logger *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not found, using environment variables")
	}

	mailUser := getEnv("MAIL_USER", "")
	return Config{
		Port: getEnvAsInt("PORT", 5000),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "CollabGrowDB"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/collabgrow.db"),

		CredentialsFile:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", "serviceAccountKey.json"),
		FirebaseProjectID: getEnv("FIREBASE_PROJECT_ID", ""),

		Mail: Mail{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			User:     mailUser,
			Password: getEnv("MAIL_PASS", ""),
			From:     getEnv("MAIL_FROM", mailUser),
		},

		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 5),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// Validate checks that the configuration is usable. Every problem found is
// reported, joined into one error.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE must not be empty"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q (want mongo or sqlite)", c.StoreDriver))
	}

	if c.CredentialsFile == "" {
		errs = append(errs, errors.New("GOOGLE_APPLICATION_CREDENTIALS must not be empty"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q (want text or json)", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", s)
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
// An invalid level falls back to info; Validate reports it separately.
func (c Config) NewLogger() *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
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
