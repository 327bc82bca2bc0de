// Package config loads the process-level configuration: HTTP listen
// address, logging, metrics, task registry and result store backend
// selection, and pipeline knobs.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config is the top-level configuration tree, unmarshaled from YAML/JSON
// plus environment overrides by Load.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Registry RegistryConfig `mapstructure:"registry"`
	Result   ResultConfig   `mapstructure:"result"`
	Task     TaskConfig     `mapstructure:"task"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// MetricsConfig holds the Prometheus exposition settings. It is loaded
// and defaulted, but surveyctl serve does not start a metrics listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// RegistryConfig selects and configures the task.Registry backend.
type RegistryConfig struct {
	Backend   string `mapstructure:"backend"` // redis | sqlite | mysql
	RedisAddr string `mapstructure:"redis_addr"`
	DSN       string `mapstructure:"dsn"`
}

// ResultConfig selects and configures the result.Store backend.
type ResultConfig struct {
	Backend       string `mapstructure:"backend"` // mongo | sqlite
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
	SQLitePath    string `mapstructure:"sqlite_path"`
}

// TaskConfig configures task.Manager's watcher and TTL knobs.
type TaskConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// PipelineConfig configures the dataflow engine's default worker pool,
// queue capacity, and retry ceiling.
type PipelineConfig struct {
	Workers          int `mapstructure:"workers"`
	QueueCapacity    int `mapstructure:"queue_capacity"`
	MaxRetryAttempts int `mapstructure:"max_retry_attempts"`
}

// Validate checks every required key and collects every violation rather
// than stopping at the first, so a misconfigured deployment sees the
// whole list in one pass.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.ListenAddr == "" {
		result = multierror.Append(result, fmt.Errorf("server.listen_addr is required"))
	}

	switch c.Registry.Backend {
	case "redis":
		if c.Registry.RedisAddr == "" {
			result = multierror.Append(result, fmt.Errorf("registry.redis_addr is required when registry.backend=redis"))
		}
	case "sqlite", "mysql":
		if c.Registry.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("registry.dsn is required when registry.backend=%s", c.Registry.Backend))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("registry.backend must be redis, sqlite, or mysql, got %q", c.Registry.Backend))
	}

	switch c.Result.Backend {
	case "mongo":
		if c.Result.MongoURI == "" {
			result = multierror.Append(result, fmt.Errorf("result.mongo_uri is required when result.backend=mongo"))
		}
		if c.Result.MongoDatabase == "" {
			result = multierror.Append(result, fmt.Errorf("result.mongo_database is required when result.backend=mongo"))
		}
	case "sqlite":
		if c.Result.SQLitePath == "" {
			result = multierror.Append(result, fmt.Errorf("result.sqlite_path is required when result.backend=sqlite"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("result.backend must be mongo or sqlite, got %q", c.Result.Backend))
	}

	if c.Pipeline.Workers <= 0 {
		result = multierror.Append(result, fmt.Errorf("pipeline.workers must be positive, got %d", c.Pipeline.Workers))
	}
	if c.Pipeline.QueueCapacity < 0 {
		result = multierror.Append(result, fmt.Errorf("pipeline.queue_capacity must not be negative, got %d", c.Pipeline.QueueCapacity))
	}

	return result.ErrorOrNil()
}
