package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read as configuration. A double
// underscore separates nesting levels: TOKENS_LOG__LEVEL sets log.level.
const EnvPrefix = "TOKENS_"

type Config struct {
	Env string    `koanf:"env"`
	Log LogConfig `koanf:"log"`

	HTTP     HTTPConfig     `koanf:"http"`
	Database DatabaseConfig `koanf:"database"`
	Secrets  SecretsConfig  `koanf:"secrets"`
	Session  SessionConfig  `koanf:"session"`

	Invites   InvitesConfig   `koanf:"invites"`
	APITokens APITokensConfig `koanf:"api_tokens"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Tasks     TasksConfig     `koanf:"tasks"`

	Housekeeping HousekeepingConfig `koanf:"housekeeping"`
	TOTP         TOTPConfig         `koanf:"totp"`
	AuthCodes    AuthCodesConfig    `koanf:"auth_codes"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type HTTPConfig struct {
	Port                int           `koanf:"port"`
	ShutdownGracePeriod time.Duration `koanf:"shutdown_grace_period"`
	TrustProxyHeaders   bool          `koanf:"trust_proxy_headers"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`

	// Pool settings only apply to postgres.
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type SecretsConfig struct {
	PepperFile    string `koanf:"pepper_file"`
	MasterKeyFile string `koanf:"master_key_file"`
}

// SessionConfig points at the accounts subsystem's session signing key.
// Without a key file only API tokens authenticate.
type SessionConfig struct {
	PublicKeyFile string        `koanf:"public_key_file"`
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	Leeway        time.Duration `koanf:"leeway"`
}

type InvitesConfig struct {
	DailyQuota int           `koanf:"daily_quota"`
	TTL        time.Duration `koanf:"ttl"`
	MaxTTL     time.Duration `koanf:"max_ttl"`
	Timezone   string        `koanf:"timezone"`
}

type APITokensConfig struct {
	DailyQuota int `koanf:"daily_quota"`
}

// LimitConfig is a short burst window checked before a long sustained one.
type LimitConfig struct {
	Burst     ratelimit.Window `koanf:"burst"`
	Sustained ratelimit.Window `koanf:"sustained"`
}

func (c LimitConfig) Windows() []ratelimit.Window {
	return []ratelimit.Window{c.Burst, c.Sustained}
}

type RateLimitConfig struct {
	Invite LimitConfig `koanf:"invite"`
	Auth   LimitConfig `koanf:"auth"`
}

type WebhookConfig struct {
	webhook.Config `koanf:",squash"`

	SweepInterval time.Duration `koanf:"sweep_interval"`
	SweepBatch    int           `koanf:"sweep_batch"`
}

type TasksConfig struct {
	Workers   int `koanf:"workers"`
	QueueSize int `koanf:"queue_size"`
}

type HousekeepingConfig struct {
	Interval  time.Duration `koanf:"interval"`
	Retention time.Duration `koanf:"retention"`
}

type TOTPConfig struct {
	Issuer string `koanf:"issuer"`
}

type AuthCodesConfig struct {
	TTL         time.Duration `koanf:"ttl"`
	MaxAttempts int           `koanf:"max_attempts"`
}

// defaults is the lowest configuration layer. Durations are strings so they
// pass through the same decode hook as file and env values.
func defaults() map[string]any {
	return map[string]any{
		"env": "dev",
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"http": map[string]any{
			"port":                  8080,
			"shutdown_grace_period": "10s",
			"trust_proxy_headers":   false,
		},
		"database": map[string]any{
			"driver": "sqlite",
			"dsn":    "tokens.db",
		},
		"secrets": map[string]any{
			"pepper_file":     "pepper",
			"master_key_file": "",
		},
		"session": map[string]any{
			"issuer": "accounts",
			"leeway": "30s",
		},
		"invites": map[string]any{
			"daily_quota": 5,
			"ttl":         "720h",
			"max_ttl":     "720h",
			"timezone":    "UTC",
		},
		"api_tokens": map[string]any{
			"daily_quota": 0,
		},
		"ratelimit": map[string]any{
			"invite": map[string]any{
				"burst":     map[string]any{"limit": 5, "period": "1m"},
				"sustained": map[string]any{"limit": 30, "period": "1h"},
			},
			"auth": map[string]any{
				"burst":     map[string]any{"limit": 60, "period": "1m"},
				"sustained": map[string]any{"limit": 1000, "period": "1h"},
			},
		},
		"webhook": map[string]any{
			"timeout":        "5s",
			"max_attempts":   3,
			"base_delay":     "1s",
			"sweep_interval": "1m",
			"sweep_batch":    100,
		},
		"tasks": map[string]any{
			"workers":    4,
			"queue_size": 256,
		},
		"housekeeping": map[string]any{
			"interval":  "1h",
			"retention": "720h",
		},
		"totp": map[string]any{
			"issuer": "Tokens",
		},
		"auth_codes": map[string]any{
			"ttl":          "10m",
			"max_attempts": 5,
		},
	}
}

// mapProvider feeds an in-memory map to koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("app: map provider has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) { return m, nil }

// LoadConfig layers compiled defaults, the optional YAML file at path and
// TOKENS_ environment variables, later layers winning.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps TOKENS_RATELIMIT__INVITE__BURST__LIMIT to
// ratelimit.invite.burst.limit. Single underscores survive since they are
// part of key names like daily_quota.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn: required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port: %d out of range", c.HTTP.Port)
	}
	if c.Secrets.PepperFile == "" {
		return errors.New("secrets.pepper_file: required")
	}
	if c.Invites.DailyQuota < 0 || c.APITokens.DailyQuota < 0 {
		return errors.New("daily_quota: must not be negative")
	}
	if c.Invites.MaxTTL > 0 && c.Invites.TTL > c.Invites.MaxTTL {
		return errors.New("invites.ttl: exceeds invites.max_ttl")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves invites.timezone, the zone daily quotas reset in.
func (c Config) Location() (*time.Location, error) {
	if c.Invites.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Invites.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invites.timezone: %w", err)
	}
	return loc, nil
}
