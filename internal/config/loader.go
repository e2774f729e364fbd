package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("$HOME/.meta-relay")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func LoadFromFile(filePath string) (*Config, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("error getting absolute path: %w", err)
	}

	v := newViper()
	v.SetConfigFile(absPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return decode(v)
}

// newViper builds an isolated instance so tests and reloads never share state.
// Environment variables override the file: META_RELAY_META_APP_SECRET -> meta.app_secret.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("META_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":5555")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)

	v.SetDefault("meta.base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("meta.app_id", "")
	v.SetDefault("meta.app_secret", "")
	v.SetDefault("meta.verify_token", "")
	v.SetDefault("meta.whatsapp_token", "")
	v.SetDefault("meta.whatsapp_phone_number_id", "")
	v.SetDefault("meta.whatsapp_business_account_id", "")
	v.SetDefault("meta.whatsapp_business_number", "")
	v.SetDefault("meta.messenger_token", "")
	v.SetDefault("meta.messenger_page_id", "")
	v.SetDefault("meta.default_template_language", "en_US")
	v.SetDefault("meta.http_timeout_seconds", 30)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "relay.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl_seconds", 10)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.interval_seconds", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "relay.log")

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.telegram_token", "")
	v.SetDefault("alerts.chat_ids", []int64{})

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.url", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")

	v.SetDefault("environment", "development")
}

func validate(cfg *Config) error {
	if cfg.Meta.BaseURL == "" {
		return fmt.Errorf("meta.base_url is required")
	}

	if cfg.Meta.AppSecret == "" {
		return fmt.Errorf("meta.app_secret is required")
	}

	if cfg.Meta.VerifyToken == "" {
		return fmt.Errorf("meta.verify_token is required")
	}

	if cfg.Meta.WhatsAppToken == "" {
		return fmt.Errorf("meta.whatsapp_token is required")
	}

	if cfg.Meta.WhatsAppPhoneNumberID == "" {
		return fmt.Errorf("meta.whatsapp_phone_number_id is required")
	}

	if cfg.Meta.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("meta.http_timeout_seconds must be greater than 0")
	}

	validDatabases := map[string]bool{
		"sqlite":   true,
		"postgres": true,
		"mysql":    true,
	}
	if !validDatabases[cfg.Database.Type] {
		return fmt.Errorf("database.type must be one of: sqlite, postgres, mysql")
	}

	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if cfg.Redis.Enabled && cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}

	if cfg.Redis.Enabled && cfg.Redis.LockTTLSeconds <= 0 {
		return fmt.Errorf("redis.lock_ttl_seconds must be greater than 0")
	}

	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be greater than 0")
	}

	if cfg.Retry.IntervalSeconds < 0 {
		return fmt.Errorf("retry.interval_seconds must not be negative")
	}

	if cfg.Alerts.Enabled && cfg.Alerts.TelegramToken == "" {
		return fmt.Errorf("alerts.telegram_token is required when alerts are enabled")
	}

	if cfg.Alerts.Enabled && len(cfg.Alerts.ChatIDs) == 0 {
		return fmt.Errorf("alerts.chat_ids must have at least one chat when alerts are enabled")
	}

	if cfg.Proxy.Enabled && cfg.Proxy.URL == "" {
		return fmt.Errorf("proxy.url is required when proxy is enabled")
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"file":   true,
		"both":   true,
	}
	if !validOutputs[cfg.Log.Output] {
		return fmt.Errorf("log.output must be one of: stdout, file, both")
	}

	if (cfg.Log.Output == "file" || cfg.Log.Output == "both") && cfg.Log.FilePath == "" {
		return fmt.Errorf("log.file_path is required when log.output is file or both")
	}

	return nil
}

func SaveExampleConfig(filePath string) error {
	exampleConfig := `server:
  address: ":5555"

meta:
  base_url: "https://graph.facebook.com/v21.0"
  app_id: "YOUR_APP_ID"
  app_secret: "YOUR_APP_SECRET"
  verify_token: "YOUR_WEBHOOK_VERIFY_TOKEN"
  whatsapp_token: "YOUR_WHATSAPP_TOKEN"
  whatsapp_phone_number_id: "YOUR_PHONE_NUMBER_ID"
  whatsapp_business_account_id: "YOUR_WABA_ID"
  whatsapp_business_number: "15550000000"
  messenger_token: "YOUR_PAGE_TOKEN"
  messenger_page_id: "YOUR_PAGE_ID"
  default_template_language: "en_US"

database:
  type: "sqlite"
  dsn: "relay.db"

redis:
  enabled: false
  address: "localhost:6379"
  password: ""
  db: 0
  lock_ttl_seconds: 10

retry:
  max_attempts: 3
  interval_seconds: 2

log:
  level: "info"
  output: "stdout"
  file_path: "relay.log"

alerts:
  enabled: false
  telegram_token: ""
  chat_ids: []

environment: "development"
`

	return os.WriteFile(filePath, []byte(exampleConfig), 0644)
}
