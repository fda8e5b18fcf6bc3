/*
config.go - Runtime configuration

PURPOSE:
  Reads settings from the environment, after loading an optional .env file.
  cmd/plantao applies its flags on top of the result.

KEYS:
  HTTP_ADDR                  listen address (default ":8080")
  DB_PATH                    SQLite file, ":memory:" for a throwaway store
  LOG_LEVEL                  debug | info | warn | error
  RETRY_INTERVAL             failed invalidation retry period (default 5m)
  INVALIDATION_CONCURRENCY   parallel sweeps for bulk override saves
  CORS_ORIGINS               comma-separated allowed origins
*/
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	HTTPAddr                string
	DBPath                  string
	LogLevel                zapcore.Level
	RetryInterval           time.Duration
	InvalidationConcurrency int
	CORSOrigins             []string
}

// Load reads .env files (missing files are ignored) and then the
// environment. Variables already set in the environment win over .env.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, &configError{message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return FromEnv()
}

// FromEnv reads the configuration from environment variables only.
func FromEnv() (Config, error) {
	var cfg Config
	var err error

	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.DBPath = getEnv("DB_PATH", "plantao.db")
	if cfg.LogLevel, err = zapcore.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return cfg, &configError{message: "invalid LOG_LEVEL: " + err.Error()}
	}
	if cfg.RetryInterval, err = getEnvDuration("RETRY_INTERVAL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RetryInterval <= 0 {
		return cfg, &configError{message: "RETRY_INTERVAL must be positive"}
	}
	if cfg.InvalidationConcurrency, err = getEnvInt("INVALIDATION_CONCURRENCY", 4); err != nil {
		return cfg, err
	}
	if cfg.InvalidationConcurrency < 1 {
		return cfg, &configError{message: "INVALIDATION_CONCURRENCY must be at least 1"}
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", ""))

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, &configError{message: "invalid int for " + key + ": " + err.Error()}
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, &configError{message: "invalid duration for " + key + ": " + err.Error()}
	}
	return parsed, nil
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

type configError struct {
	message string
}

func (e *configError) Error() string {
	return e.message
}
