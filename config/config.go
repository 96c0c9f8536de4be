package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration system
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Agents     AgentsConfig     `mapstructure:"agents"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Stream     StreamConfig     `mapstructure:"stream"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Listen   string `mapstructure:"listen"`
}

// AgentsConfig contains run-loop and agent invocation settings
type AgentsConfig struct {
	AgentTimeout      time.Duration `mapstructure:"agent_timeout"`
	MaxStateRepeats   int           `mapstructure:"max_state_repeats"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

// MarketDataConfig selects and configures the quote store backend
type MarketDataConfig struct {
	Backend string      `mapstructure:"backend"` // memory, redis
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// StreamConfig configures the optional trace-event mirror on a Redis stream
type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	MaxLen  int64  `mapstructure:"max_len"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("finsense")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FINSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional - defaults cover a full local run
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.listen", ":10011")

	v.SetDefault("agents.agent_timeout", "30s")
	v.SetDefault("agents.max_state_repeats", 3)
	v.SetDefault("agents.max_concurrent_runs", 8)

	v.SetDefault("market_data.backend", "memory")
	v.SetDefault("market_data.redis.host", "localhost")
	v.SetDefault("market_data.redis.port", 6379)
	v.SetDefault("market_data.redis.db", 0)
	v.SetDefault("market_data.redis.timeout", "5s")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.periodic_logs", false)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.name", "finsense:trace")
	v.SetDefault("stream.max_len", 10000)
}

// overrideFromEnv overrides configuration with environment variables
func overrideFromEnv(v *viper.Viper) {
	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("market_data.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("market_data.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("market_data.redis.password", password)
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.MarketData.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown market_data backend: %q", cfg.MarketData.Backend)
	}
	if cfg.Agents.MaxStateRepeats < 1 {
		return fmt.Errorf("agents.max_state_repeats must be at least 1")
	}
	if cfg.Agents.MaxConcurrentRuns < 1 {
		return fmt.Errorf("agents.max_concurrent_runs must be at least 1")
	}
	if cfg.Stream.Enabled && cfg.Stream.Name == "" {
		return fmt.Errorf("stream.name is required when the trace mirror is enabled")
	}
	return nil
}
