// Package config loads service configuration from a YAML file overlaid with
// environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env       string    `yaml:"env" env:"AUTHSVC_ENV" env-default:"local"`
	HTTP      HTTP      `yaml:"http"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	JWT       JWT       `yaml:"jwt"`
	Auth      Auth      `yaml:"auth"`
	TOTP      TOTP      `yaml:"totp"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Mail      Mail      `yaml:"mail"`
	OAuth     OAuth     `yaml:"oauth"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type HTTP struct {
	Address         string        `yaml:"address" env:"AUTHSVC_HTTP_ADDRESS" env-default:":8080"`
	Prefix          string        `yaml:"prefix" env:"AUTHSVC_HTTP_PREFIX" env-default:"/api/auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"AUTHSVC_TRUSTED_PROXIES" env-separator:","`
	// CORSOrigins lists allowed browser origins. Empty or "*" allows any.
	CORSOrigins []string `yaml:"cors_origins" env:"AUTHSVC_CORS_ORIGINS" env-separator:","`
}

type Database struct {
	Driver       string `yaml:"driver" env:"AUTHSVC_DB_DRIVER" env-default:"sqlite"`
	DSN          string `yaml:"dsn" env:"AUTHSVC_DB_DSN" env-default:"file:authsvc.db?_pragma=busy_timeout(5000)"`
	MaxOpenConns int    `yaml:"max_open_conns" env-default:"10"`
}

type Redis struct {
	Addr      string `yaml:"addr" env:"AUTHSVC_REDIS_ADDR" env-default:"localhost:6379"`
	Password  string `yaml:"password" env:"AUTHSVC_REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"AUTHSVC_REDIS_DB" env-default:"0"`
	KeyPrefix string `yaml:"key_prefix" env-default:"authsvc"`
}

type JWT struct {
	AccessSecret  string        `yaml:"access_secret" env:"AUTHSVC_JWT_ACCESS_SECRET"`
	RefreshSecret string        `yaml:"refresh_secret" env:"AUTHSVC_JWT_REFRESH_SECRET"`
	Issuer        string        `yaml:"issuer" env-default:"authsvc"`
	AccessTTL     time.Duration `yaml:"access_ttl" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" env-default:"168h"`
	Leeway        time.Duration `yaml:"leeway" env-default:"0s"`
}

type Auth struct {
	RequireVerifiedEmail  bool          `yaml:"require_verified_email" env:"AUTHSVC_REQUIRE_VERIFIED_EMAIL" env-default:"false"`
	VerificationCodeTTL   time.Duration `yaml:"verification_code_ttl" env-default:"24h"`
	ResetCodeTTL          time.Duration `yaml:"reset_code_ttl" env-default:"10m"`
	HideUnknownResetEmail bool          `yaml:"hide_unknown_reset_email" env-default:"false"`
}

type TOTP struct {
	Issuer                  string `yaml:"issuer" env-default:"authsvc"`
	Skew                    int    `yaml:"skew" env-default:"1"`
	EnforceReplayProtection bool   `yaml:"enforce_replay_protection" env-default:"true"`
}

type RateLimit struct {
	LoginMax    int           `yaml:"login_max" env-default:"5"`
	LoginWindow time.Duration `yaml:"login_window" env-default:"15m"`
	CodeMax     int           `yaml:"code_max" env-default:"5"`
	CodeWindow  time.Duration `yaml:"code_window" env-default:"1h"`
}

type Mail struct {
	Driver   string `yaml:"driver" env:"AUTHSVC_MAIL_DRIVER" env-default:"log"`
	Host     string `yaml:"host" env:"AUTHSVC_SMTP_HOST"`
	Port     int    `yaml:"port" env:"AUTHSVC_SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"AUTHSVC_SMTP_USERNAME"`
	Password string `yaml:"password" env:"AUTHSVC_SMTP_PASSWORD"`
	From     string `yaml:"from" env:"AUTHSVC_MAIL_FROM" env-default:"no-reply@localhost"`
}

type OAuth struct {
	Google Google `yaml:"google"`
}

type Google struct {
	ClientID     string        `yaml:"client_id" env:"AUTHSVC_GOOGLE_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"AUTHSVC_GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `yaml:"redirect_url" env:"AUTHSVC_GOOGLE_REDIRECT_URL"`
	StateTTL     time.Duration `yaml:"state_ttl" env-default:"10m"`
}

// Enabled reports whether Google login is configured.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"authsvc"`
}

// MustLoad resolves the config path from the -config flag or CONFIG_PATH and
// panics on any error. It is meant for main only.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty: pass -config or set CONFIG_PATH")
	}
	if _, err := os.Stat(path); err != nil {
		panic("config file not found: " + path)
	}

	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv builds the configuration from environment variables alone.
func LoadEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fetchConfigPath() string {
	if flag.Lookup("config") == nil {
		flag.String("config", "", "path to config file")
	}
	if !flag.Parsed() {
		flag.Parse()
	}

	path := flag.Lookup("config").Value.String()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		errs = append(errs, fmt.Errorf("env: unknown environment %q", c.Env))
	}

	if strings.TrimSpace(c.JWT.AccessSecret) == "" || strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		errs = append(errs, errors.New("jwt: access_secret and refresh_secret are required"))
	} else if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("jwt: access_secret and refresh_secret must differ"))
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database: unknown driver %q", c.Database.Driver))
	}

	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("mail: host is required for the smtp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("mail: unknown driver %q", c.Mail.Driver))
	}

	if !strings.HasPrefix(c.HTTP.Prefix, "/") {
		errs = append(errs, errors.New("http: prefix must start with /"))
	}

	return errors.Join(errs...)
}
