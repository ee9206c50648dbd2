/*
Package config loads the server configuration.

PRIORITY (highest first):
  1. Environment variables with the PROVISIONS_ prefix, dots replaced by
     underscores (PROVISIONS_DATABASE_DSN, PROVISIONS_AUTH_JWT_SECRET)
  2. The TOML file given with -config, or the first config.toml found in
     ., ./config and /etc/provision-ledger
  3. Built-in defaults (SQLite file, auth off, no Redis)
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Overlay  OverlayConfig
	Settings SettingsConfig
}

type AppConfig struct {
	Name     string
	Env      string
	Timezone string // business dates are computed in this zone
}

type DatabaseConfig struct {
	Driver       string // sqlite3 or postgres
	DSN          string
	MaxOpenConns int
}

type HTTPConfig struct {
	Addr             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	CORSAllowOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
}

// RedisConfig enables cross-instance change events when Addr is set.
type RedisConfig struct {
	Addr    string
	Channel string
}

type AdminConfig struct {
	ResetCode string
}

type OverlayConfig struct {
	MaxSignature       int
	MaxRemarks         int
	MaxBalanceQuantity string
	MaxBalanceAmount   string
}

// SettingsConfig seeds app_settings on first start.
type SettingsConfig struct {
	AllowPreviousDateEntry bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "provision-ledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "Local")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./data/provisions.db")
	v.SetDefault("database.max_open_conns", 10)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.cors_allow_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.issuer", "provision-ledger")

	v.SetDefault("redis.channel", "provisions:changes")

	v.SetDefault("admin.reset_code", "1978")

	v.SetDefault("overlay.max_signature", 100)
	v.SetDefault("overlay.max_remarks", 500)
	v.SetDefault("overlay.max_balance_quantity", "999999.99")
	v.SetDefault("overlay.max_balance_amount", "9999999.99")

	v.SetDefault("settings.allow_previous_date_entry", false)
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/provision-ledger")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PROVISIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Timezone: v.GetString("app.timezone"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			DSN:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
		},
		HTTP: HTTPConfig{
			Addr:             v.GetString("http.addr"),
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Auth: AuthConfig{
			Enabled:   v.GetBool("auth.enabled"),
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Redis: RedisConfig{
			Addr:    v.GetString("redis.addr"),
			Channel: v.GetString("redis.channel"),
		},
		Admin: AdminConfig{
			ResetCode: v.GetString("admin.reset_code"),
		},
		Overlay: OverlayConfig{
			MaxSignature:       v.GetInt("overlay.max_signature"),
			MaxRemarks:         v.GetInt("overlay.max_remarks"),
			MaxBalanceQuantity: v.GetString("overlay.max_balance_quantity"),
			MaxBalanceAmount:   v.GetString("overlay.max_balance_amount"),
		},
		Settings: SettingsConfig{
			AllowPreviousDateEntry: v.GetBool("settings.allow_previous_date_entry"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters when auth is enabled")
	}
	if c.Admin.ResetCode == "" {
		return errors.New("admin.reset_code must not be empty")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	return nil
}

// Location returns the business time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
