package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# signalbot configuration

[bot]
# Analysis strategy run by analyze: "fixed" or "momentum"
analyzer = "fixed"
# Initial strategy label and risk level reported in the bot state
strategy = "momentum"
risk_level = 0.5

[server]
host = "127.0.0.1"
port = 8080
read_timeout = "15s"
write_timeout = "60s"
shutdown_timeout = "10s"
# Maximum request body size
body_limit = "1M"
# Allowed CORS origins for the dashboard, empty disables CORS
cors_origins = []
# Requests per second per client IP, 0 disables rate limiting
rate_limit = 20.0
rate_burst = 40

[client]
# Server address used by CLI commands
addr = "http://127.0.0.1:8080"
timeout = "90s"

[llm]
# Model identifier passed to the OpenAI-compatible endpoint
model = "llama3.1:8b"
# Leave empty for api.openai.com, or point at a local server
# such as "http://127.0.0.1:11434/v1"
base_url = ""

[persistence]
# Snapshot driver: "none", "sqlite" or "redis"
driver = "none"
# SQLite database path (defaults to signalbot.db in the config directory)
path = ""
snapshot_interval = "30s"

[persistence.redis]
addr = "127.0.0.1:6379"
password = ""
db = 0
prefix = "signalbot"

[events]
# Log every bot event
log = true
# Event types to publish, empty means all:
# signals_generated, trades_executed, bot_toggled, strategy_updated
types = []

[events.webhook]
enabled = false
url = ""
timeout = "10s"

[events.kafka]
enabled = false
brokers = []
topic = "signalbot.events"
compression = "gzip"

[logging]
level = "info"
json = false
file = true
file_path = ""
max_size = 100
max_backups = 7
max_age = 30
`

const credentialsTemplate = `# signalbot credentials
# WARNING: Keep this file secure! Do not commit to version control.

[openai]
api_key = ""
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	// Use restricted permissions for credentials file
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}
	return nil
}

// TemplatePath returns where the config template lives for configDir.
func TemplatePath(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}
