package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "bridge"
	DefaultPGSSLMode         = "disable"
	DefaultCodeLength        = 6
	DefaultCodeTTLMinutes    = 10
	DefaultSessionTTLMinutes = 60
	DefaultMaxAttempts       = 3
	DefaultTokenTTLMinutes   = 15
	DefaultSweepSpec         = "@every 5m"
	DefaultCountryCode       = "51"
	DefaultSendTimeoutSecs   = 10
	DefaultLoginRatePerSec   = 1
	DefaultLoginBurst        = 5

	// StoreMemory keeps sessions/tokens in process memory. Acceptable for a
	// single-instance deployment only; replicated deployments need the
	// postgres-backed stores so state is visible across the fleet.
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Admin      AdminConfig      `toml:"admin"`
	Challenge  ChallengeConfig  `toml:"challenge"`
	Token      TokenConfig      `toml:"token"`
	WhatsApp   WhatsAppConfig   `toml:"whatsapp"`
	Automation AutomationConfig `toml:"automation"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
	Migrate  bool   `toml:"migrate"`
}

// URL renders the pool connection string.
func (c PostgresConfig) URL() string {
	auth := c.User
	if c.Password != "" {
		auth = auth + ":" + c.Password
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", auth, c.Host, c.Port, c.Database, c.SSLMode)
}

type AdminConfig struct {
	Email           string `toml:"email" validate:"required,email"`
	Password        string `toml:"password" validate:"required"`
	JWTSecret       string `toml:"jwt_secret" validate:"required"`
	JWTExpiresIn    string `toml:"jwt_expires_in"`
	LoginRatePerSec int    `toml:"login_rate_per_sec" validate:"gt=0"`
	LoginBurst      int    `toml:"login_burst" validate:"gt=0"`
}

// ChallengeConfig tunes the one-time-code auth state machine.
type ChallengeConfig struct {
	Store             string `toml:"store" validate:"oneof=memory postgres"`
	CodeLength        int    `toml:"code_length" validate:"gte=4,lte=10"`
	CodeTTLMinutes    int    `toml:"code_ttl_minutes" validate:"gt=0"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes" validate:"gt=0"`
	MaxAttempts       int    `toml:"max_attempts" validate:"gt=0"`
	SweepSpec         string `toml:"sweep" validate:"required"`
}

type TokenConfig struct {
	Store      string `toml:"store" validate:"oneof=memory postgres"`
	TTLMinutes int    `toml:"ttl_minutes" validate:"gt=0"`
	SweepSpec  string `toml:"sweep" validate:"required"`
}

type WhatsAppConfig struct {
	DefaultCountryCode string             `toml:"default_country_code" validate:"required,numeric"`
	SendTimeoutSeconds int                `toml:"send_timeout_seconds" validate:"gt=0"`
	Instances          []WhatsAppInstance `toml:"instances" validate:"dive"`
}

// WhatsAppInstance binds one gateway instance to a tenant. The webhook token
// is the per-instance shared secret checked on every delivery.
type WhatsAppInstance struct {
	ID           string `toml:"id" validate:"required"`
	WebhookToken string `toml:"webhook_token" validate:"required"`
	TenantID     int64  `toml:"tenant_id" validate:"gt=0"`
	BaseURL      string `toml:"base_url"`
	APIKey       string `toml:"api_key"`
}

// Instance looks up an instance binding by id.
func (c WhatsAppConfig) Instance(id string) (WhatsAppInstance, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return WhatsAppInstance{}, false
	}
	for _, inst := range c.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return WhatsAppInstance{}, false
}

type AutomationConfig struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gt=0"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
			Migrate:  true,
		},
		Admin: AdminConfig{
			Email:           "admin@example.com",
			Password:        "change-your-password-here",
			JWTSecret:       "",
			JWTExpiresIn:    DefaultJWTExpiresIn,
			LoginRatePerSec: DefaultLoginRatePerSec,
			LoginBurst:      DefaultLoginBurst,
		},
		Challenge: ChallengeConfig{
			Store:             StorePostgres,
			CodeLength:        DefaultCodeLength,
			CodeTTLMinutes:    DefaultCodeTTLMinutes,
			SessionTTLMinutes: DefaultSessionTTLMinutes,
			MaxAttempts:       DefaultMaxAttempts,
			SweepSpec:         DefaultSweepSpec,
		},
		Token: TokenConfig{
			Store:      StorePostgres,
			TTLMinutes: DefaultTokenTTLMinutes,
			SweepSpec:  DefaultSweepSpec,
		},
		WhatsApp: WhatsAppConfig{
			DefaultCountryCode: DefaultCountryCode,
			SendTimeoutSeconds: DefaultSendTimeoutSecs,
		},
		Automation: AutomationConfig{
			TimeoutSeconds: 30,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks struct constraints after decoding.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
