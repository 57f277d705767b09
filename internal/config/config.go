package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server             ServerConfig             `mapstructure:"server"`
	App                AppConfig                `mapstructure:"app"`
	Auth               AuthConfig               `mapstructure:"auth"`
	Email              EmailConfig              `mapstructure:"email"`
	SMTP               SMTPConfig               `mapstructure:"smtp"`
	Delivery           DeliveryConfig           `mapstructure:"delivery"`
	Batch              BatchConfig              `mapstructure:"batch"`
	Printer            PrinterConfig            `mapstructure:"printer"`
	CORS               CORSConfig               `mapstructure:"cors"`
	RateLimit          RateLimitConfig          `mapstructure:"rate_limit"`
	Redis              RedisConfig              `mapstructure:"redis"`
	Supabase           SupabaseConfig           `mapstructure:"supabase"`
	Queue              QueueConfig              `mapstructure:"queue"`
	RecipientRateLimit RecipientRateLimitConfig `mapstructure:"recipient_rate_limit"`
	Reaper             ReaperConfigYAML         `mapstructure:"reaper"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AppConfig holds deployment-wide settings.
type AppConfig struct {
	Production bool `mapstructure:"production"`
}

// Environment returns the environment label stamped on outgoing messages.
func (a AppConfig) Environment() string {
	if a.Production {
		return "production"
	}
	return "development"
}

// AuthConfig holds API key authentication settings.
// CronKey authorizes scheduler-triggered calls sent as a Bearer token.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
	CronKey string   `mapstructure:"cron_key"`
}

// EmailConfig holds email provider settings shared by every transport.
type EmailConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	FromAddress    string `mapstructure:"from_address"`
	FromName       string `mapstructure:"from_name"`
	ReplyToAddress string `mapstructure:"reply_to_address"`
	BrandName      string `mapstructure:"brand_name"`
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host              string     `mapstructure:"host"`
	Port              int        `mapstructure:"port"`
	Username          string     `mapstructure:"username"`
	Password          string     `mapstructure:"password"`
	RequireTLS        bool       `mapstructure:"require_tls"`
	HeloName          string     `mapstructure:"helo_name"`
	PoolSize          int        `mapstructure:"pool_size"`
	ConnectTimeoutSec int        `mapstructure:"connect_timeout_sec"`
	CommandTimeoutSec int        `mapstructure:"command_timeout_sec"`
	DKIM              DKIMConfig `mapstructure:"dkim"`
}

// DKIMConfig holds optional DKIM signing settings.
type DKIMConfig struct {
	Selector   string `mapstructure:"selector"`
	Domain     string `mapstructure:"domain"`
	PrivateKey string `mapstructure:"private_key"`
	KeyPath    string `mapstructure:"key_path"`
}

// DeliveryConfig holds the single-send retry policy.
type DeliveryConfig struct {
	MaxRetries       int `mapstructure:"max_retries"`
	BaseRetryDelayMs int `mapstructure:"base_retry_delay_ms"`
	AttemptTimeoutMs int `mapstructure:"attempt_timeout_ms"`
}

// BaseRetryDelay returns the backoff base as a duration.
func (d DeliveryConfig) BaseRetryDelay() time.Duration {
	return time.Duration(d.BaseRetryDelayMs) * time.Millisecond
}

// AttemptTimeout returns the per-attempt timeout; zero disables it.
func (d DeliveryConfig) AttemptTimeout() time.Duration {
	return time.Duration(d.AttemptTimeoutMs) * time.Millisecond
}

// BatchConfig holds fan-out defaults.
type BatchConfig struct {
	Size              int `mapstructure:"size"`
	InterBatchDelayMs int `mapstructure:"inter_batch_delay_ms"`
}

// InterBatchDelay returns the pause between batches as a duration.
func (b BatchConfig) InterBatchDelay() time.Duration {
	return time.Duration(b.InterBatchDelayMs) * time.Millisecond
}

// PrinterConfig holds the fulfillment partner recipients.
type PrinterConfig struct {
	Recipients []string `mapstructure:"recipients"`
}

// CORSConfig holds CORS policy settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SupabaseConfig holds Supabase project settings.
type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// Enabled reports whether the delivery-log store can be built.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.URL) != "" && strings.TrimSpace(s.ServiceKey) != ""
}

// QueueConfig holds async queue settings.
// MaxRetry bounds asynq redelivery of tasks that failed outside the executor
// (store errors, worker shutdown). Delivery failures are never redelivered.
type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
}

// RecipientRateLimitConfig holds per-recipient rate limiting settings.
type RecipientRateLimitConfig struct {
	MaxPerHour int `mapstructure:"max_per_hour"`
}

// ReaperConfigYAML holds stale task reaper settings (durations as seconds for YAML/env compat).
type ReaperConfigYAML struct {
	IntervalSec       int `mapstructure:"interval_sec"`
	StaleThresholdSec int `mapstructure:"stale_threshold_sec"`
	BatchSize         int `mapstructure:"batch_size"`
}

// Load reads configuration from config.yaml and environment variables.
// Environment variables use the ORDERMAIL_ prefix and underscore separators.
// Example: ORDERMAIL_SMTP_HOST overrides smtp.host in config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Load .env file if it exists
	_ = godotenv.Load()

	v.SetEnvPrefix("ORDERMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional; env vars can provide everything)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Comma-separated lists arrive as a single string from env vars.
	cfg.Auth.APIKeys = splitList(cfg.Auth.APIKeys)
	cfg.Printer.Recipients = splitList(cfg.Printer.Recipients)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = splitList(cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = splitList(cfg.CORS.AllowedHeaders)

	if cfg.Delivery.MaxRetries < 1 {
		return nil, fmt.Errorf("delivery.max_retries must be at least 1, got %d", cfg.Delivery.MaxRetries)
	}
	if cfg.Batch.Size < 1 {
		return nil, fmt.Errorf("batch.size must be at least 1, got %d", cfg.Batch.Size)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("app.production", false)
	v.SetDefault("auth.api_keys", "")
	v.SetDefault("auth.cron_key", "")
	v.SetDefault("email.provider", "smtp")
	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from_address", "hello@linkist.ai")
	v.SetDefault("email.from_name", "Linkist NFC")
	v.SetDefault("email.reply_to_address", "support@linkist.ai")
	v.SetDefault("email.brand_name", "Linkist")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.require_tls", true)
	v.SetDefault("smtp.helo_name", "")
	v.SetDefault("smtp.pool_size", 10)
	v.SetDefault("smtp.connect_timeout_sec", 10)
	v.SetDefault("smtp.command_timeout_sec", 10)
	v.SetDefault("smtp.dkim.selector", "")
	v.SetDefault("smtp.dkim.domain", "")
	v.SetDefault("smtp.dkim.private_key", "")
	v.SetDefault("smtp.dkim.key_path", "")
	v.SetDefault("delivery.max_retries", 3)
	v.SetDefault("delivery.base_retry_delay_ms", 1000)
	v.SetDefault("delivery.attempt_timeout_ms", 0)
	v.SetDefault("batch.size", 10)
	v.SetDefault("batch.inter_batch_delay_ms", 1000)
	v.SetDefault("printer.recipients", "")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("cors.allowed_methods", "GET,POST,OPTIONS")
	v.SetDefault("cors.allowed_headers", "Origin,Content-Type,Authorization,X-API-Key,X-Request-ID")
	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 5)
	v.SetDefault("recipient_rate_limit.max_per_hour", 20)
	v.SetDefault("reaper.interval_sec", 300)       // 5 minutes
	v.SetDefault("reaper.stale_threshold_sec", 600) // 10 minutes
	v.SetDefault("reaper.batch_size", 50)
}

func splitList(values []string) []string {
	var out []string
	for _, raw := range values {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
