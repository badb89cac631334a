// Package config loads application settings from defaults, an optional YAML
// file and ONESTOP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "ONESTOP_"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	Storage       StorageConfig       `koanf:"storage"`
	Database      DatabaseConfig      `koanf:"database"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
	Seed          SeedConfig          `koanf:"seed"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `koanf:"driver"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// JWTConfig holds token settings.
type JWTConfig struct {
	SecretKey           string        `koanf:"secret_key"`
	AccessTokenDuration time.Duration `koanf:"access_token_duration"`
}

// CORSConfig holds allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig throttles login attempts and API traffic per client.
type RateLimitConfig struct {
	LoginPerMinute int    `koanf:"login_per_minute"`
	LoginBurst     int    `koanf:"login_burst"`
	APIPerMinute   int    `koanf:"api_per_minute"`
	APIBurst       int    `koanf:"api_burst"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
}

// SeedConfig controls loading of the demo fixture.
type SeedConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NotificationsConfig holds incident notification settings.
type NotificationsConfig struct {
	Enabled    bool             `koanf:"enabled"`
	BaseURL    string           `koanf:"base_url"`
	Email      EmailConfig      `koanf:"email"`
	Mattermost MattermostConfig `koanf:"mattermost"`
	Worker     WorkerConfig     `koanf:"worker"`
	Retry      RetryConfig      `koanf:"retry"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
}

// MattermostConfig maps resolver group names to incoming webhook URLs.
type MattermostConfig struct {
	Enabled  bool              `koanf:"enabled"`
	Username string            `koanf:"username"`
	IconURL  string            `koanf:"icon_url"`
	Webhooks map[string]string `koanf:"webhooks"`
}

// WorkerConfig sizes the delivery worker pool.
type WorkerConfig struct {
	NumWorkers int `koanf:"num_workers"`
	QueueSize  int `koanf:"queue_size"`
}

// RetryConfig holds delivery retry settings.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  60 * time.Second,
			AutoMigrate:     true,
		},
		JWT: JWTConfig{
			AccessTokenDuration: 8 * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: 10,
			LoginBurst:     5,
			APIPerMinute:   600,
			APIBurst:       100,
		},
		Seed: SeedConfig{
			Enabled: true,
		},
		Notifications: NotificationsConfig{
			BaseURL: "http://localhost:3000",
			Email: EmailConfig{
				SMTPPort:    587,
				FromAddress: "itsm@localhost",
			},
			Worker: WorkerConfig{
				NumWorkers: 2,
				QueueSize:  256,
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        5 * time.Minute,
				BackoffMultiplier: 2.0,
			},
		},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envValue maps ONESTOP_SERVER__METRICS_PORT to server.metrics_port and
// splits comma separated lists.
func envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")

	if key == "cors.allowed_origins" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return key, out
	}
	return key, value
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	} else if len(c.JWT.SecretKey) < 32 {
		errs = append(errs, errors.New("jwt.secret_key must be at least 32 characters"))
	}
	if c.JWT.AccessTokenDuration <= 0 {
		errs = append(errs, errors.New("jwt.access_token_duration must be positive"))
	}

	if c.Server.Port == c.Server.MetricsPort {
		errs = append(errs, errors.New("server.port and server.metrics_port must differ"))
	}

	if c.RateLimit.LoginPerMinute <= 0 || c.RateLimit.LoginBurst <= 0 {
		errs = append(errs, errors.New("ratelimit login settings must be positive"))
	}
	if c.RateLimit.APIPerMinute < 0 || c.RateLimit.APIBurst < 0 {
		errs = append(errs, errors.New("ratelimit api settings must not be negative"))
	}

	n := c.Notifications
	if n.Enabled {
		if n.Email.Enabled && n.Email.SMTPHost == "" {
			errs = append(errs, errors.New("notifications.email.smtp_host is required when email is enabled"))
		}
		if n.Worker.NumWorkers <= 0 || n.Worker.QueueSize <= 0 {
			errs = append(errs, errors.New("notifications.worker sizes must be positive"))
		}
		if n.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("notifications.retry.max_attempts must be positive"))
		}
		if n.Retry.BackoffMultiplier < 1 {
			errs = append(errs, errors.New("notifications.retry.backoff_multiplier must be at least 1"))
		}
	}

	return errors.Join(errs...)
}
