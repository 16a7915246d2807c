package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		API
		State
		Session
		Reverify
		UI
		Global
		Log
	}

	HTTP struct {
		Port int32
		Host string
	}
	API struct {
		BaseURL string
		Timeout time.Duration
	}
	State struct {
		Path          string
		EncryptionKey string // Base64, takes precedence over the passphrase
		Passphrase    string
		KeyFilePath   string
	}
	Session struct {
		Lifetime           time.Duration
		SecureCookies      bool // Set to false for local dev without HTTPS
		CSRFSecret         string
		LoginRatePerMinute int // Login attempts allowed per minute
		LoginBurst         int
	}
	Reverify struct {
		Enabled  bool
		Schedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Log struct {
		Level string
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("api_base_url", "http://localhost:5000/api")
	v.SetDefault("api_timeout", "30s")
	v.SetDefault("state_path", "./adminpanel.db")
	v.SetDefault("state_encryption_key", "") // Falls back to passphrase, then key file
	v.SetDefault("state_passphrase", "")
	v.SetDefault("state_key_file", "./adminpanel.key")
	v.SetDefault("session_lifetime", "168h") // One week
	v.SetDefault("secure_cookies", true)
	v.SetDefault("csrf_secret", "") // Auto-generated if empty
	v.SetDefault("login_rate_per_minute", 10)
	v.SetDefault("login_burst", 5)
	v.SetDefault("reverify_enabled", false)
	v.SetDefault("reverify_schedule", "*/15 * * * *")
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")
	v.SetDefault("log_level", "info")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		API: API{
			BaseURL: v.GetString("API_BASE_URL"),
			Timeout: v.GetDuration("API_TIMEOUT"),
		},
		State: State{
			Path:          v.GetString("STATE_PATH"),
			EncryptionKey: v.GetString("STATE_ENCRYPTION_KEY"),
			Passphrase:    v.GetString("STATE_PASSPHRASE"),
			KeyFilePath:   v.GetString("STATE_KEY_FILE"),
		},
		Session: Session{
			Lifetime:           v.GetDuration("SESSION_LIFETIME"),
			SecureCookies:      v.GetBool("SECURE_COOKIES"),
			CSRFSecret:         v.GetString("CSRF_SECRET"),
			LoginRatePerMinute: v.GetInt("LOGIN_RATE_PER_MINUTE"),
			LoginBurst:         v.GetInt("LOGIN_BURST"),
		},
		Reverify: Reverify{
			Enabled:  v.GetBool("REVERIFY_ENABLED"),
			Schedule: v.GetString("REVERIFY_SCHEDULE"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
}
