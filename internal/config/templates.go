package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Sentinel Configuration

[tracking]
# Minutes between stock tracking cycles (1-1440)
interval_minutes = 60
# Fractional move that triggers an alert, e.g. 0.01 = 1%
price_change_threshold = 0.01
# Maximum number of actively tracked stocks (0 = unlimited)
max_tracked_stocks = 50
# Hour of day (UTC) for the politician tracking cycle
politician_hour = 9
# Days of recent activity that trigger politician research
politician_activity_days = 2
# When an alert is recorded: "attempt" (before delivery outcome) or "delivered"
record_policy = "attempt"
# Per-entity deadlines
fetch_timeout = "30s"
dispatch_timeout = "2m"
# Time zone that defines the alerting calendar day
timezone = "UTC"
# Alert history older than this is purged daily
retention_days = 90

[database]
# Defaults to sentinel.db in the config directory
path = ""

[api]
enabled = true
host = "0.0.0.0"
port = 8080

[notifications]
enabled = true

[notifications.webhook]
enabled = false
url = ""

[notifications.telegram]
enabled = true
bot_token = ""
chat_id = ""
# Accept /track, /follow and friends from the configured chat
commands = true
poll_timeout = 60

[agents]
model = "gpt-4o-mini"
research_model = "gpt-4.1"
max_tokens = 4000
temperature = 0.7

[market]
provider = "alpaca"
# Alpaca data feed: iex or sip
feed = "iex"

[congress]
base_url = "https://api.quiverquant.com/beta"
lookback_days = 7

[logging]
level = "info"
console = true
file = true
max_size = 10
max_backups = 5
max_age = 30
`

const credentialsTemplate = `# Stock Sentinel Credentials
# WARNING: Keep this file secure. Environment variables take precedence.

[openai]
api_key = ""

[alpaca]
key_id = ""
secret_key = ""

[quiver]
api_token = ""

[api]
# Bearer token required by the REST API; empty disables authentication
auth_token = ""
`

// createTemplate writes a commented template when a config file is missing.
func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}

// ConfigPath returns the path of the main config file.
func ConfigPath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
