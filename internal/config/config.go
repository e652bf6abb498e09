// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RateLimit is the number of initiate/activate calls allowed per identifier per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// RedisConfig is optional. With an empty URL the exclusion cache, the sweep lock
// and the rate limiter are disabled.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func (c RedisConfig) Enabled() bool { return c.URL != "" }

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type MoMoConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIUser           string        `yaml:"api_user"`
	APIKey            string        `yaml:"api_key"`
	SubscriptionKey   string        `yaml:"subscription_key"`
	TargetEnvironment string        `yaml:"target_environment"`
	Currency          string        `yaml:"currency"`
	CallbackURL       string        `yaml:"callback_url"`
	Timeout           time.Duration `yaml:"timeout"`
	TokenRefresh      time.Duration `yaml:"token_refresh_margin"`
}

type PaymentConfig struct {
	// Provider selects the gateway: momo | noop. noop is forced in dev mode without credentials.
	Provider string     `yaml:"provider"`
	MoMo     MoMoConfig `yaml:"momo"`
}

type NetworkConfig struct {
	DisconnectURL string        `yaml:"disconnect_url"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Timeout       time.Duration `yaml:"timeout"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

type ReconcilerConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
	BatchSize  int           `yaml:"batch_size"`
}

type CodesConfig struct {
	Length             int    `yaml:"length"`
	Alphabet           string `yaml:"alphabet"`
	DeferredActivation bool   `yaml:"deferred_activation"`
}

type PackageConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	DurationHours int    `yaml:"duration_hours"`
	Price         int64  `yaml:"price"` // minor units
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Payment    PaymentConfig    `yaml:"payment"`
	Network    NetworkConfig    `yaml:"network"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Codes      CodesConfig      `yaml:"codes"`
	Packages   []PackageConfig  `yaml:"packages"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 30*time.Second)
	if cfg.HTTP.RateLimit <= 0 {
		cfg.HTTP.RateLimit = 10
	}
	cfg.HTTP.RateWindow = orDefault(cfg.HTTP.RateWindow, time.Minute)
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Database.MaxConnLifetime = orDefault(cfg.Database.MaxConnLifetime, time.Hour)
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, 5*time.Minute)

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "momo"
	}
	cfg.Payment.Provider = strings.ToLower(cfg.Payment.Provider)
	if cfg.Payment.MoMo.BaseURL == "" {
		cfg.Payment.MoMo.BaseURL = "https://sandbox.momodeveloper.mtn.com"
	}
	if cfg.Payment.MoMo.TargetEnvironment == "" {
		cfg.Payment.MoMo.TargetEnvironment = "sandbox"
	}
	if cfg.Payment.MoMo.Currency == "" {
		cfg.Payment.MoMo.Currency = "EUR"
	}
	cfg.Payment.MoMo.Timeout = orDefault(cfg.Payment.MoMo.Timeout, 10*time.Second)
	cfg.Payment.MoMo.TokenRefresh = orDefault(cfg.Payment.MoMo.TokenRefresh, 5*time.Minute)

	cfg.Network.Timeout = orDefault(cfg.Network.Timeout, 5*time.Second)
	cfg.Sweeper.Interval = orDefault(cfg.Sweeper.Interval, time.Minute)
	if cfg.Sweeper.Workers <= 0 {
		cfg.Sweeper.Workers = 8
	}
	cfg.Reconciler.Interval = orDefault(cfg.Reconciler.Interval, 2*time.Minute)
	cfg.Reconciler.StaleAfter = orDefault(cfg.Reconciler.StaleAfter, 5*time.Minute)
	if cfg.Reconciler.BatchSize <= 0 {
		cfg.Reconciler.BatchSize = 50
	}
	if cfg.Codes.Length <= 0 {
		cfg.Codes.Length = 8
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Runtime.Dev {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return errors.New("database.min_conns must not exceed database.max_conns")
	}
	switch cfg.Payment.Provider {
	case "noop":
	case "momo":
		m := cfg.Payment.MoMo
		if !cfg.Runtime.Dev && (m.APIUser == "" || m.APIKey == "" || m.SubscriptionKey == "") {
			return errors.New("payment.momo credentials are required outside dev mode")
		}
	default:
		return fmt.Errorf("payment.provider %q is not supported", cfg.Payment.Provider)
	}
	if cfg.Payment.MoMo.TokenRefresh >= time.Hour {
		return errors.New("payment.momo.token_refresh_margin must be under one hour")
	}
	for i, p := range cfg.Packages {
		if p.ID == "" || p.DurationHours <= 0 || p.Price < 0 {
			return fmt.Errorf("packages[%d]: id, positive duration_hours and non-negative price are required", i)
		}
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
