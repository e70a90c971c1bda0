package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (FORGE_ prefix)
// and an optional config.yaml in the working directory or /etc/adforge.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/adforge")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file is fine; environment variables carry the config.
	}

	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface env-only keys through Unmarshal, so
	// bind every known key explicitly.
	for _, key := range allKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("orchestrator.max_concurrency", 4)
	v.SetDefault("orchestrator.queue_size", 64)
	v.SetDefault("orchestrator.adapter_timeout", "120s")
	v.SetDefault("orchestrator.poll_interval", "2s")
	v.SetDefault("orchestrator.cancel_grace_period", "5s")

	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.max_unknown_attempts", 2)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")
	v.SetDefault("breaker.cooldown_jitter", 0.2)

	v.SetDefault("providers.compositor.model", "gemini-2.0-flash")
	v.SetDefault("providers.compositor.output_dir", "./output")
	v.SetDefault("providers.luma.http_timeout", "30s")
	v.SetDefault("providers.pika.http_timeout", "30s")

	v.SetDefault("catalog.template_dir", "./templates")

	v.SetDefault("assets.max_size_bytes", 25<<20)
}

func allKeys() []string {
	return []string{
		"server.port",
		"server.log_level",
		"server.log_format",
		"auth.jwt_secret",
		"auth.token_lifetime_minutes",
		"auth.username",
		"auth.password_hash",
		"orchestrator.max_concurrency",
		"orchestrator.queue_size",
		"orchestrator.adapter_timeout",
		"orchestrator.poll_interval",
		"orchestrator.cancel_grace_period",
		"retry.base_delay",
		"retry.max_delay",
		"retry.max_attempts",
		"retry.max_unknown_attempts",
		"breaker.failure_threshold",
		"breaker.cooldown",
		"breaker.cooldown_jitter",
		"providers.compositor.enabled",
		"providers.compositor.api_key",
		"providers.compositor.model",
		"providers.compositor.output_dir",
		"providers.luma.enabled",
		"providers.luma.base_url",
		"providers.luma.api_key",
		"providers.luma.http_timeout",
		"providers.pika.enabled",
		"providers.pika.base_url",
		"providers.pika.api_key",
		"providers.pika.http_timeout",
		"archive.enabled",
		"archive.database_url",
		"catalog.template_dir",
		"assets.max_size_bytes",
		"assets.allowed_content_types",
	}
}
