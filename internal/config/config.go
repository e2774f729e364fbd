package config

type Config struct {
	Server      ServerConfig   `mapstructure:"server"`
	Meta        MetaConfig     `mapstructure:"meta"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Retry       RetryConfig    `mapstructure:"retry"`
	Log         LogConfig      `mapstructure:"log"`
	Alerts      AlertsConfig   `mapstructure:"alerts"`
	Proxy       ProxyConfig    `mapstructure:"proxy"`
	Environment string         `mapstructure:"environment"`
}

type ServerConfig struct {
	Address             string `mapstructure:"address"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

// MetaConfig carries every provider credential and business identifier.
// It is handed to the graph client, the webhook interpreters and the send pipeline.
type MetaConfig struct {
	BaseURL                   string `mapstructure:"base_url"`
	AppID                     string `mapstructure:"app_id"`
	AppSecret                 string `mapstructure:"app_secret"`    // HMAC key for X-Hub-Signature-256
	VerifyToken               string `mapstructure:"verify_token"`  // hub.verify_token for subscription checks
	WhatsAppToken             string `mapstructure:"whatsapp_token"`
	WhatsAppPhoneNumberID     string `mapstructure:"whatsapp_phone_number_id"`
	WhatsAppBusinessAccountID string `mapstructure:"whatsapp_business_account_id"`
	WhatsAppBusinessNumber    string `mapstructure:"whatsapp_business_number"` // compared against "from" to infer direction
	MessengerToken            string `mapstructure:"messenger_token"`
	MessengerPageID           string `mapstructure:"messenger_page_id"`
	DefaultTemplateLanguage   string `mapstructure:"default_template_language"`
	HTTPTimeoutSeconds        int    `mapstructure:"http_timeout_seconds"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
}

type RetryConfig struct {
	MaxAttempts     int `mapstructure:"max_attempts"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type AlertsConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	TelegramToken string  `mapstructure:"telegram_token"`
	ChatIDs       []int64 `mapstructure:"chat_ids"`
}

type ProxyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`      // Proxy URL, e.g., "http://127.0.0.1:7890" or "socks5://127.0.0.1:1080"
	Username string `mapstructure:"username"` // Optional: proxy username
	Password string `mapstructure:"password"` // Optional: proxy password
}
