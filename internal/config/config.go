// Package config provides configuration management for the monitoring service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stock-sentinel/internal/logging"
)

// Record policies decide when a dispatched alert suppresses same-day re-alerting.
const (
	RecordOnAttempt   = "attempt"
	RecordOnDelivered = "delivered"
)

// Config holds all application configuration.
type Config struct {
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Database      DatabaseConfig     `mapstructure:"database"`
	API           APIConfig          `mapstructure:"api"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Agents        AgentConfig        `mapstructure:"agents"`
	Market        MarketConfig       `mapstructure:"market"`
	Congress      CongressConfig     `mapstructure:"congress"`
	Logging       logging.LogConfig  `mapstructure:"logging"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
}

// TrackingConfig holds tracking-cycle configuration.
type TrackingConfig struct {
	IntervalMinutes        int           `mapstructure:"interval_minutes"`
	PriceChangeThreshold   float64       `mapstructure:"price_change_threshold"`
	MaxTrackedStocks       int           `mapstructure:"max_tracked_stocks"`
	PoliticianHour         int           `mapstructure:"politician_hour"`
	PoliticianActivityDays int           `mapstructure:"politician_activity_days"`
	RecordPolicy           string        `mapstructure:"record_policy"`
	FetchTimeout           time.Duration `mapstructure:"fetch_timeout"`
	DispatchTimeout        time.Duration `mapstructure:"dispatch_timeout"`
	Timezone               string        `mapstructure:"timezone"`
	RetentionDays          int           `mapstructure:"retention_days"`
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// APIConfig holds REST API configuration.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram configuration.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BotToken    string `mapstructure:"bot_token"`
	ChatID      string `mapstructure:"chat_id"`
	Commands    bool   `mapstructure:"commands"`
	PollTimeout int    `mapstructure:"poll_timeout"`
}

// AgentConfig holds AI summarisation configuration.
type AgentConfig struct {
	Model         string  `mapstructure:"model"`
	ResearchModel string  `mapstructure:"research_model"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float32 `mapstructure:"temperature"`
}

// MarketConfig holds market-data configuration.
type MarketConfig struct {
	Provider string `mapstructure:"provider"`
	Feed     string `mapstructure:"feed"`
	BaseURL  string `mapstructure:"base_url"`
}

// CongressConfig holds congressional-trading data configuration.
type CongressConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	LookbackDays int    `mapstructure:"lookback_days"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
	Alpaca AlpacaCredentials `mapstructure:"alpaca"`
	Quiver QuiverCredentials `mapstructure:"quiver"`
	API    APICredentials    `mapstructure:"api"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
}

// AlpacaCredentials holds Alpaca market-data credentials.
type AlpacaCredentials struct {
	KeyID     string `mapstructure:"key_id"`
	SecretKey string `mapstructure:"secret_key"`
}

// QuiverCredentials holds Quiver Quantitative API credentials.
type QuiverCredentials struct {
	APIToken string `mapstructure:"api_token"`
}

// APICredentials holds the bearer token protecting the REST API.
type APICredentials struct {
	AuthToken string `mapstructure:"auth_token"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-sentinel"
	}
	return filepath.Join(home, ".config", "stock-sentinel")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Missing files are created from templates and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(configDir, "sentinel.db")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultLogConfig()

	v.SetDefault("tracking.interval_minutes", 60)
	v.SetDefault("tracking.price_change_threshold", 0.01)
	v.SetDefault("tracking.max_tracked_stocks", 50)
	v.SetDefault("tracking.politician_hour", 9)
	v.SetDefault("tracking.politician_activity_days", 2)
	v.SetDefault("tracking.record_policy", RecordOnAttempt)
	v.SetDefault("tracking.fetch_timeout", "30s")
	v.SetDefault("tracking.dispatch_timeout", "2m")
	v.SetDefault("tracking.timezone", "UTC")
	v.SetDefault("tracking.retention_days", 90)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.telegram.enabled", true)
	v.SetDefault("notifications.telegram.commands", true)
	v.SetDefault("notifications.telegram.poll_timeout", 60)

	v.SetDefault("agents.model", "gpt-4o-mini")
	v.SetDefault("agents.research_model", "gpt-4.1")
	v.SetDefault("agents.max_tokens", 4000)
	v.SetDefault("agents.temperature", 0.7)

	v.SetDefault("market.provider", "alpaca")
	v.SetDefault("market.feed", "iex")

	v.SetDefault("congress.base_url", "https://api.quiverquant.com/beta")
	v.SetDefault("congress.lookback_days", 7)

	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", logDefaults.FilePath)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
}

func loadConfigFile(configDir string, cfg *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(cfg)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Credentials usually come from the environment; the template is a hint.
		if err := createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600); err != nil {
			return err
		}
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.Agents.Model = v
	}
	if v := os.Getenv("QUIVER_API_TOKEN"); v != "" {
		cfg.Credentials.Quiver.APIToken = v
	}
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Credentials.Alpaca.KeyID = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Credentials.Alpaca.SecretKey = v
	}
	if v := os.Getenv("ENDPOINT_AUTH_TOKEN"); v != "" {
		cfg.Credentials.API.AuthToken = v
	}
	if v := os.Getenv("ENDPOINT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("TRACKING_INTERVAL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Tracking.IntervalMinutes = minutes
		}
	}
	if v := os.Getenv("PRICE_CHANGE_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tracking.PriceChangeThreshold = th
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	t := c.Tracking
	if t.IntervalMinutes < 1 || t.IntervalMinutes > 1440 {
		return fmt.Errorf("tracking interval must be between 1 and 1440 minutes")
	}
	if t.PriceChangeThreshold <= 0 || t.PriceChangeThreshold > 1 {
		return fmt.Errorf("price_change_threshold must be in (0, 1]")
	}
	if t.PoliticianHour < 0 || t.PoliticianHour > 23 {
		return fmt.Errorf("politician_hour must be between 0 and 23")
	}
	if t.RecordPolicy != RecordOnAttempt && t.RecordPolicy != RecordOnDelivered {
		return fmt.Errorf("invalid record_policy: %s (must be '%s' or '%s')", t.RecordPolicy, RecordOnAttempt, RecordOnDelivered)
	}
	if t.MaxTrackedStocks < 0 {
		return fmt.Errorf("max_tracked_stocks must be non-negative")
	}
	if _, err := time.LoadLocation(t.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", t.Timezone, err)
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if id := c.Notifications.Telegram.ChatID; id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return fmt.Errorf("telegram chat_id must be numeric")
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Location returns the time zone that defines a calendar day for alerts.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TelegramChatID returns the configured chat id as an integer, or 0.
func (c *Config) TelegramChatID() int64 {
	id, _ := strconv.ParseInt(c.Notifications.Telegram.ChatID, 10, 64)
	return id
}
