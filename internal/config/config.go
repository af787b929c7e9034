// Package config loads configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds all session configuration.
type Config struct {
	// Metrics
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Workspace mount
	StorageBackend string // "memory", "local", "s3" or "postgres"
	MountPath      string
	MountName      string
	MountReadOnly  bool

	// Scratch mount (ephemeral memory backend, optional)
	ScratchPath string

	// Local backend
	LocalStoragePath string

	// S3 backend
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// Postgres backend
	DatabaseURL string

	// Change watcher (local backend only)
	WatchEnabled    bool
	WatchDebounceMs int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),

		StorageBackend: envOr("STORAGE_BACKEND", "memory"),
		MountPath:      envOr("MOUNT_PATH", "/project"),
		MountName:      envOr("MOUNT_NAME", ""),
		MountReadOnly:  envBool("MOUNT_READ_ONLY", false),

		ScratchPath: envOr("SCRATCH_PATH", "/tmp"),

		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "./data"),

		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "webshell"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),

		DatabaseURL: envOr("DATABASE_URL", ""),

		WatchEnabled:    envBool("WATCH_ENABLED", true),
		WatchDebounceMs: envInt("WATCH_DEBOUNCE_MS", 250),
	}

	switch cfg.StorageBackend {
	case "memory", "local", "s3":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %s", cfg.StorageBackend)
	}

	return cfg, nil
}

// BackendConfig returns the backend type and the JSON document the storage
// factory expects for it.
func (c *Config) BackendConfig() (string, json.RawMessage, error) {
	var doc any
	switch c.StorageBackend {
	case "memory":
		doc = struct{}{}
	case "local":
		doc = struct {
			RootPath   string `json:"root_path"`
			CreateDirs bool   `json:"create_dirs"`
		}{RootPath: c.LocalStoragePath, CreateDirs: true}
	case "s3":
		doc = struct {
			Endpoint  string `json:"endpoint"`
			Bucket    string `json:"bucket"`
			AccessKey string `json:"access_key"`
			SecretKey string `json:"secret_key"`
			Region    string `json:"region"`
		}{c.S3Endpoint, c.S3Bucket, c.S3AccessKey, c.S3SecretKey, c.S3Region}
	case "postgres":
		doc = struct {
			DatabaseURL string `json:"database_url"`
		}{c.DatabaseURL}
	default:
		return "", nil, fmt.Errorf("unknown backend type: %s", c.StorageBackend)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s backend config: %w", c.StorageBackend, err)
	}
	return c.StorageBackend, raw, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
