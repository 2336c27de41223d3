package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for agriassist
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Disaster DisasterConfig `mapstructure:"disaster"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig selects the zap preset and level
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig configures the optional risk-signal cache
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	WeatherTTL  time.Duration `mapstructure:"weather_ttl"`
	DisasterTTL time.Duration `mapstructure:"disaster_ttl"`
}

// WeatherConfig configures the weather source
type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DisasterConfig configures the disaster feed
type DisasterConfig struct {
	URL     string        `mapstructure:"url"`
	Limit   int           `mapstructure:"limit"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds both language model tiers
type LLMConfig struct {
	Remote RemoteLLMConfig `mapstructure:"remote"`
	Local  LocalLLMConfig  `mapstructure:"local"`
}

// RemoteLLMConfig configures the hosted model (Gemini)
type RemoteLLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LocalLLMConfig configures the local OpenAI-compatible model (Ollama by default)
type LocalLLMConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ChatConfig holds conversation bookkeeping settings
type ChatConfig struct {
	ContextWindow int `mapstructure:"context_window"`
	SampleLength  int `mapstructure:"sample_length"`
	SampleLimit   int `mapstructure:"sample_limit"`
}

// CatalogConfig points at optional overrides of the embedded static tables
type CatalogConfig struct {
	PlansPath     string `mapstructure:"plans_path"`
	DistrictsPath string `mapstructure:"districts_path"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AGRIASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("log.mode", "production")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.path", "./data/agriassist.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.weather_ttl", 30*time.Minute)
	v.SetDefault("redis.disaster_ttl", time.Hour)

	v.SetDefault("weather.base_url", "https://api.open-meteo.com")
	v.SetDefault("weather.timeout", 10*time.Second)

	v.SetDefault("disaster.url", "https://api.reliefweb.int/v1/disasters?appname=agriassist&filter[field]=status&filter[value]=current")
	v.SetDefault("disaster.limit", 50)
	v.SetDefault("disaster.timeout", 10*time.Second)

	v.SetDefault("llm.remote.api_key", "")
	v.SetDefault("llm.remote.model", "gemini-2.0-flash")
	v.SetDefault("llm.remote.temperature", 0.4)
	v.SetDefault("llm.remote.timeout", 30*time.Second)

	v.SetDefault("llm.local.enabled", true)
	v.SetDefault("llm.local.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.local.api_key", "")
	v.SetDefault("llm.local.model", "qwen2.5:7b")
	v.SetDefault("llm.local.temperature", 0.4)
	v.SetDefault("llm.local.probe_timeout", 3*time.Second)
	v.SetDefault("llm.local.timeout", 10*time.Second)

	v.SetDefault("chat.context_window", 5)
	v.SetDefault("chat.sample_length", 50)
	v.SetDefault("chat.sample_limit", 50)

	v.SetDefault("catalog.plans_path", "")
	v.SetDefault("catalog.districts_path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Chat.ContextWindow < 0:
		return fmt.Errorf("chat.context_window must be >= 0, got %d", c.Chat.ContextWindow)
	case c.Chat.SampleLength <= 0:
		return fmt.Errorf("chat.sample_length must be > 0, got %d", c.Chat.SampleLength)
	case c.Chat.SampleLimit <= 0:
		return fmt.Errorf("chat.sample_limit must be > 0, got %d", c.Chat.SampleLimit)
	case c.Weather.Timeout <= 0 || c.Disaster.Timeout <= 0:
		return errors.New("weather and disaster timeouts must be positive")
	case c.LLM.Local.ProbeTimeout <= 0 || c.LLM.Local.Timeout <= 0 || c.LLM.Remote.Timeout <= 0:
		return errors.New("llm timeouts must be positive")
	}
	return nil
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
