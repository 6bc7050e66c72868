// Package config holds the configuration of the vecspaced daemon.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/vecspace/changelog"
	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/resource"
)

// Config holds the complete daemon configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Log       LogConfig       `yaml:"log" json:"log"`
	Engine    EngineConfig    `yaml:"engine" json:"engine"`
	Resources resource.Config `yaml:"resources" json:"resources"`
	ChangeLog ChangeLogConfig `yaml:"changelog" json:"changelog"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" json:"snapshot"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug|info|warn|error
	Format string `yaml:"format" json:"format"` // text|json
}

// NamespaceConfig overrides the engine defaults for one namespace. Unset
// fields inherit them.
type NamespaceConfig struct {
	Dimension int      `yaml:"dimension" json:"dimension"`
	Metric    string   `yaml:"metric" json:"metric"`
	Alpha     *float64 `yaml:"alpha" json:"alpha"`
}

// EngineConfig configures the Manager
type EngineConfig struct {
	Dimension           int                        `yaml:"dimension" json:"dimension"`
	Metric              string                     `yaml:"metric" json:"metric"` // cosine|dotproduct|euclidean
	Alpha               float64                    `yaml:"alpha" json:"alpha"`
	Capacity            int                        `yaml:"capacity" json:"capacity"`
	MaxTopK             int                        `yaml:"max_top_k" json:"max_top_k"`
	KeepEmptyNamespaces bool                       `yaml:"keep_empty_namespaces" json:"keep_empty_namespaces"`
	Namespaces          map[string]NamespaceConfig `yaml:"namespaces" json:"namespaces"`
}

// ChangeLogConfig configures the local change log
type ChangeLogConfig struct {
	Path        string `yaml:"path" json:"path"` // empty disables the change log
	Compression string `yaml:"compression" json:"compression"`
	Replay      bool   `yaml:"replay" json:"replay"` // replay the log on start
}

// SnapshotConfig configures snapshot storage
type SnapshotConfig struct {
	Backend string `yaml:"backend" json:"backend"` // none|local|s3|minio

	// local
	Dir string `yaml:"dir" json:"dir"`

	// s3 and minio
	Bucket        string `yaml:"bucket" json:"bucket"`
	Prefix        string `yaml:"prefix" json:"prefix"`
	Region        string `yaml:"region" json:"region"`
	DynamoDBTable string `yaml:"dynamodb_table" json:"dynamodb_table"` // s3 only, commits CURRENT through DynamoDB

	// minio
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`

	Compression    string        `yaml:"compression" json:"compression"`
	RestoreOnStart bool          `yaml:"restore_on_start" json:"restore_on_start"`
	SaveOnShutdown bool          `yaml:"save_on_shutdown" json:"save_on_shutdown"`
	Interval       time.Duration `yaml:"interval" json:"interval"` // zero disables periodic snapshots
	Retain         int           `yaml:"retain" json:"retain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			Metric:  "cosine",
			Alpha:   0.5,
			MaxTopK: 10_000,
		},
		ChangeLog: ChangeLogConfig{
			Compression: "zstd",
			Replay:      true,
		},
		Snapshot: SnapshotConfig{
			Backend:        "none",
			Dir:            "./data",
			Compression:    "zstd",
			RestoreOnStart: true,
			SaveOnShutdown: true,
			Retain:         3,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be one of: text, json)", c.Log.Format)
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if c.Resources.MaxConcurrentQueries < 0 || c.Resources.WriteRecordsPerSec < 0 ||
		c.Resources.WriteBurst < 0 || c.Resources.IOLimitBytesPerSec < 0 {
		return fmt.Errorf("resource limits must not be negative")
	}
	if _, err := changelog.ParseCompression(c.ChangeLog.Compression); err != nil {
		return fmt.Errorf("changelog: %w", err)
	}
	return c.validateSnapshot()
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.Dimension < 0 {
		return fmt.Errorf("engine dimension must not be negative, got %d", e.Dimension)
	}
	if _, err := distance.ParseMetric(e.Metric); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if e.Alpha < 0 || e.Alpha > 1 {
		return fmt.Errorf("engine alpha must be within [0, 1], got %v", e.Alpha)
	}
	if e.Capacity < 0 {
		return fmt.Errorf("engine capacity must not be negative, got %d", e.Capacity)
	}
	if e.MaxTopK <= 0 {
		return fmt.Errorf("engine max_top_k must be positive, got %d", e.MaxTopK)
	}
	for name, ns := range e.Namespaces {
		if ns.Dimension < 0 {
			return fmt.Errorf("namespace %q: dimension must not be negative", name)
		}
		if ns.Metric != "" {
			if _, err := distance.ParseMetric(ns.Metric); err != nil {
				return fmt.Errorf("namespace %q: %w", name, err)
			}
		}
		if ns.Alpha != nil && (*ns.Alpha < 0 || *ns.Alpha > 1) {
			return fmt.Errorf("namespace %q: alpha must be within [0, 1], got %v", name, *ns.Alpha)
		}
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	s := c.Snapshot
	if _, err := changelog.ParseCompression(s.Compression); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if s.Interval < 0 || s.Retain < 0 {
		return fmt.Errorf("snapshot interval and retain must not be negative")
	}
	switch s.Backend {
	case "none":
		return nil
	case "local":
		if s.Dir == "" {
			return fmt.Errorf("snapshot backend local requires dir")
		}
	case "s3":
		if s.Bucket == "" {
			return fmt.Errorf("snapshot backend s3 requires bucket")
		}
	case "minio":
		if s.Bucket == "" || s.Endpoint == "" {
			return fmt.Errorf("snapshot backend minio requires bucket and endpoint")
		}
	default:
		return fmt.Errorf("invalid snapshot backend: %s (must be one of: none, local, s3, minio)", s.Backend)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", l.Level)
	}
	return level, nil
}
