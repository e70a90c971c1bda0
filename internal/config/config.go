// Package config loads and validates application configuration from
// environment variables and an optional config file.
package config

import "time"

// Config holds all application configuration. It organizes settings
// into logical groups for better maintainability.
type Config struct {
	Server       ServerConfig       `mapstructure:"server" validate:"required"`
	Auth         AuthConfig         `mapstructure:"auth" validate:"required"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" validate:"required"`
	Retry        RetryConfig        `mapstructure:"retry"`
	Breaker      BreakerConfig      `mapstructure:"breaker"`
	Providers    ProvidersConfig    `mapstructure:"providers" validate:"required"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Catalog      CatalogConfig      `mapstructure:"catalog" validate:"required"`
	Assets       AssetsConfig       `mapstructure:"assets"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// LogFormat selects the handler: "json" for machine ingestion,
	// "text" for colorized development output.
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`
}

// AuthConfig contains all authentication settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=0"`
	// PasswordHash is the bcrypt hash of the single operator account's
	// password. Multi-user accounts are out of scope for now.
	Username     string `mapstructure:"username" validate:"required"`
	PasswordHash string `mapstructure:"password_hash" validate:"required"`
}

// OrchestratorConfig tunes task admission and execution.
type OrchestratorConfig struct {
	MaxConcurrency    int           `mapstructure:"max_concurrency" validate:"required,gt=0"`
	QueueSize         int           `mapstructure:"queue_size" validate:"gte=0"`
	AdapterTimeout    time.Duration `mapstructure:"adapter_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	CancelGracePeriod time.Duration `mapstructure:"cancel_grace_period"`
}

// RetryConfig tunes the retry policy.
type RetryConfig struct {
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	MaxAttempts        int           `mapstructure:"max_attempts" validate:"gte=0"`
	MaxUnknownAttempts int           `mapstructure:"max_unknown_attempts" validate:"gte=0"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	CooldownJitter   float64       `mapstructure:"cooldown_jitter" validate:"gte=0,lt=1"`
}

// ProvidersConfig groups per-provider connection settings.
type ProvidersConfig struct {
	Compositor CompositorConfig    `mapstructure:"compositor"`
	Luma       VideoProviderConfig `mapstructure:"luma"`
	Pika       VideoProviderConfig `mapstructure:"pika"`
}

// CompositorConfig configures the Gemini-backed image compositor.
type CompositorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	Model     string `mapstructure:"model"`
	OutputDir string `mapstructure:"output_dir"`
}

// VideoProviderConfig configures one HTTP video generation provider.
type VideoProviderConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	APIKey      string        `mapstructure:"api_key" validate:"required_if=Enabled true"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// ArchiveConfig configures the terminal-task archive. Disabled means
// outcomes live only in process memory.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Enabled true"`
}

// CatalogConfig locates the template catalog.
type CatalogConfig struct {
	TemplateDir string `mapstructure:"template_dir" validate:"required"`
}

// AssetsConfig bounds accepted asset uploads.
type AssetsConfig struct {
	MaxSizeBytes        int64    `mapstructure:"max_size_bytes" validate:"gte=0"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`
}
