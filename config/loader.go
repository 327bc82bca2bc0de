package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Load reads configuration from path (YAML, JSON, or TOML, detected by
// extension), applies defaults, allows environment variables prefixed
// SURVEYFORGE_ to override any key (dots become underscores, so
// "task.timeout" is overridden by SURVEYFORGE_TASK_TIMEOUT), and validates
// the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("surveyforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("registry.backend", "sqlite")
	v.SetDefault("registry.dsn", "survey_tasks.db")

	v.SetDefault("result.backend", "sqlite")
	v.SetDefault("result.sqlite_path", "survey_results.db")

	v.SetDefault("task.check_interval", "2s")
	v.SetDefault("task.timeout", "30m")
	v.SetDefault("task.ttl", "24h")

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_capacity", 16)
	v.SetDefault("pipeline.max_retry_attempts", 5)
}
