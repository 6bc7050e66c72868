package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPaths defines the config file search paths in priority order
var ConfigPaths = []string{
	"./vecspace.yaml",                // Project-specific config (highest priority)
	"~/.config/vecspace/config.yaml", // User config
	"/etc/vecspace/config.yaml",      // System config (lowest priority)
}

// Loader handles configuration loading with priority merging
type Loader struct {
	configPaths []string
	envFiles    []string
	getenv      func(string) string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{
		configPaths: ConfigPaths,
		envFiles:    []string{".env"},
		getenv:      os.Getenv,
	}
}

// LoadConfig loads configuration from multiple sources with priority order:
// 1. Command line flags (handled by caller)
// 2. Environment variables, including those from .env
// 3. ./vecspace.yaml
// 4. ~/.config/vecspace/config.yaml
// 5. /etc/vecspace/config.yaml
// 6. Built-in defaults
func (l *Loader) LoadConfig(customPath string) (*Config, error) {
	config := DefaultConfig()

	if customPath != "" {
		if err := validateConfigPath(customPath); err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		if err := l.loadFromFile(config, customPath); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", customPath, err)
		}
	} else {
		// Lowest priority first, so later files override earlier ones
		for i := len(l.configPaths) - 1; i >= 0; i-- {
			path := expandPath(l.configPaths[i])
			if !fileExists(path) {
				continue
			}
			if err := l.loadFromFile(config, path); err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		}
	}

	// Missing .env files are fine; variables already set win over .env
	for _, f := range l.envFiles {
		if fileExists(f) {
			if err := godotenv.Load(f); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
		}
	}

	if err := l.applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile decodes a YAML file on top of config. Keys absent from the
// file keep their current values.
func (l *Loader) loadFromFile(config *Config, path string) error {
	// #nosec G304 - path is validated by validateConfigPath() or comes from ConfigPaths
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func (l *Loader) applyEnvOverrides(config *Config) error {
	envMappings := map[string]func(string) error{
		// Server
		"VECSPACE_SERVER_ADDR":             func(v string) error { config.Server.Addr = v; return nil },
		"VECSPACE_SERVER_READ_TIMEOUT":     func(v string) error { return parseDuration(v, &config.Server.ReadTimeout) },
		"VECSPACE_SERVER_WRITE_TIMEOUT":    func(v string) error { return parseDuration(v, &config.Server.WriteTimeout) },
		"VECSPACE_SERVER_SHUTDOWN_TIMEOUT": func(v string) error { return parseDuration(v, &config.Server.ShutdownTimeout) },
		"VECSPACE_SERVER_MAX_BODY_BYTES":   func(v string) error { return parseInt64(v, &config.Server.MaxBodyBytes) },

		// Logging
		"VECSPACE_LOG_LEVEL":  func(v string) error { config.Log.Level = v; return nil },
		"VECSPACE_LOG_FORMAT": func(v string) error { config.Log.Format = v; return nil },

		// Engine
		"VECSPACE_ENGINE_DIMENSION":             func(v string) error { return parseInt(v, &config.Engine.Dimension) },
		"VECSPACE_ENGINE_METRIC":                func(v string) error { config.Engine.Metric = v; return nil },
		"VECSPACE_ENGINE_ALPHA":                 func(v string) error { return parseFloat(v, &config.Engine.Alpha) },
		"VECSPACE_ENGINE_CAPACITY":              func(v string) error { return parseInt(v, &config.Engine.Capacity) },
		"VECSPACE_ENGINE_MAX_TOP_K":             func(v string) error { return parseInt(v, &config.Engine.MaxTopK) },
		"VECSPACE_ENGINE_KEEP_EMPTY_NAMESPACES": func(v string) error { return parseBool(v, &config.Engine.KeepEmptyNamespaces) },

		// Resources
		"VECSPACE_RESOURCES_MAX_CONCURRENT_QUERIES": func(v string) error { return parseInt64(v, &config.Resources.MaxConcurrentQueries) },
		"VECSPACE_RESOURCES_WRITE_RECORDS_PER_SEC":  func(v string) error { return parseFloat(v, &config.Resources.WriteRecordsPerSec) },
		"VECSPACE_RESOURCES_WRITE_BURST":            func(v string) error { return parseInt(v, &config.Resources.WriteBurst) },
		"VECSPACE_RESOURCES_IO_LIMIT_BYTES_PER_SEC": func(v string) error { return parseInt64(v, &config.Resources.IOLimitBytesPerSec) },

		// Change log
		"VECSPACE_CHANGELOG_PATH":        func(v string) error { config.ChangeLog.Path = v; return nil },
		"VECSPACE_CHANGELOG_COMPRESSION": func(v string) error { config.ChangeLog.Compression = v; return nil },
		"VECSPACE_CHANGELOG_REPLAY":      func(v string) error { return parseBool(v, &config.ChangeLog.Replay) },

		// Snapshots
		"VECSPACE_SNAPSHOT_BACKEND":          func(v string) error { config.Snapshot.Backend = v; return nil },
		"VECSPACE_SNAPSHOT_DIR":              func(v string) error { config.Snapshot.Dir = v; return nil },
		"VECSPACE_SNAPSHOT_BUCKET":           func(v string) error { config.Snapshot.Bucket = v; return nil },
		"VECSPACE_SNAPSHOT_PREFIX":           func(v string) error { config.Snapshot.Prefix = v; return nil },
		"VECSPACE_SNAPSHOT_REGION":           func(v string) error { config.Snapshot.Region = v; return nil },
		"VECSPACE_SNAPSHOT_DYNAMODB_TABLE":   func(v string) error { config.Snapshot.DynamoDBTable = v; return nil },
		"VECSPACE_SNAPSHOT_ENDPOINT":         func(v string) error { config.Snapshot.Endpoint = v; return nil },
		"VECSPACE_SNAPSHOT_ACCESS_KEY":       func(v string) error { config.Snapshot.AccessKey = v; return nil },
		"VECSPACE_SNAPSHOT_SECRET_KEY":       func(v string) error { config.Snapshot.SecretKey = v; return nil },
		"VECSPACE_SNAPSHOT_USE_SSL":          func(v string) error { return parseBool(v, &config.Snapshot.UseSSL) },
		"VECSPACE_SNAPSHOT_COMPRESSION":      func(v string) error { config.Snapshot.Compression = v; return nil },
		"VECSPACE_SNAPSHOT_RESTORE_ON_START": func(v string) error { return parseBool(v, &config.Snapshot.RestoreOnStart) },
		"VECSPACE_SNAPSHOT_SAVE_ON_SHUTDOWN": func(v string) error { return parseBool(v, &config.Snapshot.SaveOnShutdown) },
		"VECSPACE_SNAPSHOT_INTERVAL":         func(v string) error { return parseDuration(v, &config.Snapshot.Interval) },
		"VECSPACE_SNAPSHOT_RETAIN":           func(v string) error { return parseInt(v, &config.Snapshot.Retain) },
	}

	for envVar, setter := range envMappings {
		if value := l.getenv(envVar); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s: %w", envVar, err)
			}
		}
	}

	return nil
}

// GetConfigPaths returns the list of configuration file paths that will be searched
func GetConfigPaths() []string {
	paths := make([]string, 0, len(ConfigPaths))
	for _, path := range ConfigPaths {
		paths = append(paths, expandPath(path))
	}
	return paths
}

// Helper functions

// validateConfigPath validates that a config path is safe to read
func validateConfigPath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path traversal not allowed")
	}

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("config file must have .yaml or .yml extension")
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Type conversion helpers

func parseInt(s string, dst *int) error {
	val, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseInt64(s string, dst *int64) error {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseFloat(s string, dst *float64) error {
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseBool(s string, dst *bool) error {
	val, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}

func parseDuration(s string, dst *time.Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = val
	return nil
}
