// Package config provides configuration management for the signal bot.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Server      ServerConfig      `mapstructure:"server"`
	Client      ClientConfig      `mapstructure:"client"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Events      EventsConfig      `mapstructure:"events"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Credentials Credentials       `mapstructure:"-" json:"-"` // Loaded separately
}

// BotConfig holds the initial bot state and the analysis strategy.
type BotConfig struct {
	Analyzer  string  `mapstructure:"analyzer"`   // fixed, momentum
	Strategy  string  `mapstructure:"strategy"`   // initial strategy label
	RiskLevel float64 `mapstructure:"risk_level"` // initial risk level
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       string        `mapstructure:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ClientConfig holds settings for CLI commands that talk to a running server.
type ClientConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds language model configuration.
type LLMConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// PersistenceConfig holds snapshot persistence configuration.
type PersistenceConfig struct {
	Driver           string        `mapstructure:"driver"` // none, sqlite, redis
	Path             string        `mapstructure:"path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	Redis            RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// EventsConfig holds bot event notification configuration.
type EventsConfig struct {
	Log     bool          `mapstructure:"log"`
	Types   []string      `mapstructure:"types"` // empty means all
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds Kafka event publishing configuration.
type KafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	Compression string   `mapstructure:"compression"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds credentials for the OpenAI-compatible endpoint.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// LLMConfigured reports whether enough is set to reach a language model.
func (c *Config) LLMConfigured() bool {
	return c.Credentials.OpenAI.APIKey != "" || c.LLM.BaseURL != ""
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/signalbot"
	}
	return filepath.Join(home, ".config", "signalbot")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Persistence.Path == "" {
		cfg.Persistence.Path = filepath.Join(configDir, "signalbot.db")
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(configDir, "logs", "signalbot.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.analyzer", "fixed")
	v.SetDefault("bot.strategy", "momentum")
	v.SetDefault("bot.risk_level", 0.5)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.body_limit", "1M")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("client.addr", "http://127.0.0.1:8080")
	v.SetDefault("client.timeout", "90s")

	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.base_url", "")

	v.SetDefault("persistence.driver", "none")
	v.SetDefault("persistence.snapshot_interval", "30s")
	v.SetDefault("persistence.redis.addr", "127.0.0.1:6379")
	v.SetDefault("persistence.redis.prefix", "signalbot")

	v.SetDefault("events.log", true)
	v.SetDefault("events.webhook.timeout", "10s")
	v.SetDefault("events.kafka.topic", "signalbot.events")
	v.SetDefault("events.kafka.compression", "gzip")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and fall back to defaults
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("SIGNALBOT_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("SIGNALBOT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("SIGNALBOT_ANALYZER"); v != "" {
		cfg.Bot.Analyzer = v
	}

	if v := os.Getenv("SIGNALBOT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SIGNALBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SIGNALBOT_ADDR"); v != "" {
		cfg.Client.Addr = v
	}

	if v := os.Getenv("SIGNALBOT_PERSISTENCE_DRIVER"); v != "" {
		cfg.Persistence.Driver = v
	}
	if v := os.Getenv("SIGNALBOT_REDIS_ADDR"); v != "" {
		cfg.Persistence.Redis.Addr = v
	}

	if v := os.Getenv("SIGNALBOT_WEBHOOK_URL"); v != "" {
		cfg.Events.Webhook.URL = v
		cfg.Events.Webhook.Enabled = true
	}
	if v := os.Getenv("SIGNALBOT_KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = strings.Split(v, ",")
		cfg.Events.Kafka.Enabled = true
	}

	if v := os.Getenv("SIGNALBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Bot.Analyzer {
	case "fixed", "momentum":
	default:
		return fmt.Errorf("invalid analyzer: %s (must be 'fixed' or 'momentum')", c.Bot.Analyzer)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 0 and 65535")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}

	switch c.Persistence.Driver {
	case "", "none", "sqlite":
	case "redis":
		if c.Persistence.Redis.Addr == "" {
			return fmt.Errorf("persistence.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("invalid persistence driver: %s (must be 'none', 'sqlite' or 'redis')", c.Persistence.Driver)
	}
	if c.Persistence.SnapshotInterval < 0 {
		return fmt.Errorf("snapshot_interval must be non-negative")
	}

	if c.Events.Webhook.Enabled && c.Events.Webhook.URL == "" {
		return fmt.Errorf("events.webhook.url is required when the webhook is enabled")
	}
	if c.Events.Kafka.Enabled {
		if len(c.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required when kafka is enabled")
		}
		if c.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.topic is required when kafka is enabled")
		}
	}

	return nil
}
