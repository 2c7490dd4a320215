// Package config provides configuration management for the chat server.
// It loads settings from environment variables (and an optional .env file)
// with sensible defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Storage adapters.
const (
	AdapterRelica = "relica"
	AdapterGorm   = "gorm"
)

// Config holds all configuration for the chat server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chat     ChatConfig
	Push     PushConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	AllowedOrigins  []string      `env:"SERVER_ALLOWED_ORIGINS" envSeparator:","`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Adapter  string `env:"STORAGE_ADAPTER" envDefault:"relica"` // relica, gorm
	Driver   string `env:"DB_DRIVER" envDefault:"sqlite3"`      // mysql, postgres, sqlite3
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"livechat"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME" envDefault:"livechat.db"`
	Prefix   string `env:"DB_PREFIX" envDefault:"livechat_"`
	Migrate  bool   `env:"DB_MIGRATE" envDefault:"true"`
}

// ChatConfig holds chat core configuration.
type ChatConfig struct {
	QueueSize         int  `env:"CHAT_QUEUE_SIZE" envDefault:"256"`
	MaxNicknameLength int  `env:"CHAT_MAX_NICKNAME_LENGTH" envDefault:"32"`
	MaxTextLength     int  `env:"CHAT_MAX_TEXT_LENGTH" envDefault:"500"`
	LogEvents         bool `env:"CHAT_LOG_EVENTS" envDefault:"true"`
}

// PushConfig holds push fan-out configuration.
type PushConfig struct {
	Enabled         bool          `env:"PUSH_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	Timeout         time.Duration `env:"PUSH_TIMEOUT" envDefault:"30s"`
	Concurrency     int           `env:"PUSH_CONCURRENCY" envDefault:"8"`
	MaxAttempts     int           `env:"PUSH_MAX_ATTEMPTS" envDefault:"3"`
}

// Load reads an optional .env file and then the environment.
// Follows 12-factor app principles - configuration via environment.
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables take precedence.
	_ = godotenv.Load()
	return Parse()
}

// Parse loads configuration from environment variables only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.Database.Adapter = strings.ToLower(cfg.Database.Adapter)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Adapter, validation.In(AdapterRelica, AdapterGorm)),
		validation.Field(&c.Database.Driver, validation.Required, validation.In("mysql", "postgres", "sqlite3")),
		validation.Field(&c.Database.Password, validation.When(c.Database.Driver != "sqlite3", validation.Required)),
		validation.Field(&c.Database.Database, validation.Required),
	); err != nil {
		return err
	}
	if c.Database.Adapter == AdapterGorm && c.Database.Driver != "postgres" {
		return fmt.Errorf("STORAGE_ADAPTER=gorm requires DB_DRIVER=postgres, got %q", c.Database.Driver)
	}

	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Server.ShutdownTimeout, validation.Required, validation.Min(time.Second)),
	); err != nil {
		return err
	}

	if err := validation.ValidateStruct(&c.Chat,
		validation.Field(&c.Chat.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Chat.MaxNicknameLength, validation.Required, validation.Min(1)),
		validation.Field(&c.Chat.MaxTextLength, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}

	return validation.ValidateStruct(&c.Push,
		validation.Field(&c.Push.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Push.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.Push.MaxAttempts, validation.Required, validation.Min(1)),
	)
}

// GetDSN returns the database connection string based on driver.
func (c *DatabaseConfig) GetDSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	case "sqlite3":
		return c.Database // SQLite uses file path as DSN
	default:
		return ""
	}
}
