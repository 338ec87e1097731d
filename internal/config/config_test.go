package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "OPENAI_API_KEY", "OPENAI_MODEL",
		"QUIVER_API_TOKEN", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"ENDPOINT_AUTH_TOKEN", "ENDPOINT_PORT", "TRACKING_INTERVAL_MINUTES",
		"PRICE_CHANGE_THRESHOLD", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := defaults()

	if cfg.Tracking.IntervalMinutes != 60 {
		t.Errorf("IntervalMinutes = %d, want 60", cfg.Tracking.IntervalMinutes)
	}
	if cfg.Tracking.PriceChangeThreshold != 0.01 {
		t.Errorf("PriceChangeThreshold = %v, want 0.01", cfg.Tracking.PriceChangeThreshold)
	}
	if cfg.Tracking.MaxTrackedStocks != 50 {
		t.Errorf("MaxTrackedStocks = %d, want 50", cfg.Tracking.MaxTrackedStocks)
	}
	if cfg.Tracking.RecordPolicy != RecordOnAttempt {
		t.Errorf("RecordPolicy = %s, want %s", cfg.Tracking.RecordPolicy, RecordOnAttempt)
	}
	if cfg.Tracking.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.Tracking.FetchTimeout)
	}
	if cfg.Agents.Model != "gpt-4o-mini" {
		t.Errorf("Agents.Model = %s, want gpt-4o-mini", cfg.Agents.Model)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_CreatesTemplates(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
	if cfg.Database.Path != filepath.Join(dir, "sentinel.db") {
		t.Errorf("Database.Path = %s", cfg.Database.Path)
	}
	if cfg.Tracking.PoliticianHour != 9 {
		t.Errorf("PoliticianHour = %d, want 9", cfg.Tracking.PoliticianHour)
	}

	// A second load reads the written template.
	if _, err := Load(dir); err != nil {
		t.Fatalf("second Load: %v", err)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	content := `
[tracking]
interval_minutes = 15
price_change_threshold = 0.05
record_policy = "delivered"

[notifications.telegram]
chat_id = "-100123"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	creds := "[quiver]\napi_token = \"qt\"\n"
	if err := os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(creds), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracking.IntervalMinutes != 15 {
		t.Errorf("IntervalMinutes = %d, want 15", cfg.Tracking.IntervalMinutes)
	}
	if cfg.Tracking.PriceChangeThreshold != 0.05 {
		t.Errorf("PriceChangeThreshold = %v, want 0.05", cfg.Tracking.PriceChangeThreshold)
	}
	if cfg.Tracking.RecordPolicy != RecordOnDelivered {
		t.Errorf("RecordPolicy = %s", cfg.Tracking.RecordPolicy)
	}
	if cfg.TelegramChatID() != -100123 {
		t.Errorf("TelegramChatID = %d, want -100123", cfg.TelegramChatID())
	}
	if cfg.Credentials.Quiver.APIToken != "qt" {
		t.Errorf("Quiver token = %q, want qt", cfg.Credentials.Quiver.APIToken)
	}
	// Unset keys keep their defaults.
	if cfg.Tracking.MaxTrackedStocks != 50 {
		t.Errorf("MaxTrackedStocks = %d, want 50", cfg.Tracking.MaxTrackedStocks)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot:token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("APCA_API_KEY_ID", "key")
	t.Setenv("APCA_API_SECRET_KEY", "secret")
	t.Setenv("TRACKING_INTERVAL_MINUTES", "5")
	t.Setenv("PRICE_CHANGE_THRESHOLD", "0.02")
	t.Setenv("ENDPOINT_AUTH_TOKEN", "letmein")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notifications.Telegram.BotToken != "bot:token" {
		t.Errorf("BotToken = %q", cfg.Notifications.Telegram.BotToken)
	}
	if cfg.TelegramChatID() != 42 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID())
	}
	if cfg.Credentials.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI key = %q", cfg.Credentials.OpenAI.APIKey)
	}
	if cfg.Credentials.Alpaca.KeyID != "key" || cfg.Credentials.Alpaca.SecretKey != "secret" {
		t.Errorf("Alpaca creds = %+v", cfg.Credentials.Alpaca)
	}
	if cfg.Tracking.IntervalMinutes != 5 {
		t.Errorf("IntervalMinutes = %d, want 5", cfg.Tracking.IntervalMinutes)
	}
	if cfg.Tracking.PriceChangeThreshold != 0.02 {
		t.Errorf("PriceChangeThreshold = %v, want 0.02", cfg.Tracking.PriceChangeThreshold)
	}
	if cfg.Credentials.API.AuthToken != "letmein" {
		t.Errorf("AuthToken = %q", cfg.Credentials.API.AuthToken)
	}
}

func TestLoad_InvalidEnvRejected(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")

	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "chat_id") {
		t.Errorf("Load error = %v, want chat_id validation error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"zero interval", func(c *Config) { c.Tracking.IntervalMinutes = 0 }, "interval"},
		{"interval too large", func(c *Config) { c.Tracking.IntervalMinutes = 1441 }, "interval"},
		{"zero threshold", func(c *Config) { c.Tracking.PriceChangeThreshold = 0 }, "price_change_threshold"},
		{"threshold above one", func(c *Config) { c.Tracking.PriceChangeThreshold = 1.5 }, "price_change_threshold"},
		{"bad hour", func(c *Config) { c.Tracking.PoliticianHour = 24 }, "politician_hour"},
		{"bad policy", func(c *Config) { c.Tracking.RecordPolicy = "sometimes" }, "record_policy"},
		{"bad timezone", func(c *Config) { c.Tracking.Timezone = "Mars/Olympus" }, "timezone"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "port"},
		{"bad chat id", func(c *Config) { c.Notifications.Telegram.ChatID = "@channel" }, "chat_id"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.substr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := defaults()
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	cfg.Tracking.Timezone = "America/New_York"
	if cfg.Location().String() != "America/New_York" {
		t.Errorf("Location() = %v", cfg.Location())
	}
}

// Property: thresholds and intervals validate exactly when inside their ranges.
func TestProperty_TrackingRanges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("threshold valid iff in (0, 1]", prop.ForAll(
		func(th float64) bool {
			cfg := defaults()
			cfg.Tracking.PriceChangeThreshold = th
			valid := th > 0 && th <= 1
			return (cfg.Validate() == nil) == valid
		},
		gen.Float64Range(-1, 2),
	))

	properties.Property("interval valid iff in [1, 1440]", prop.ForAll(
		func(minutes int) bool {
			cfg := defaults()
			cfg.Tracking.IntervalMinutes = minutes
			valid := minutes >= 1 && minutes <= 1440
			return (cfg.Validate() == nil) == valid
		},
		gen.IntRange(-100, 2000),
	))

	properties.TestingRun(t)
}

// defaults returns a configuration populated with defaults only.
func defaults() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}
