package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "TASKPULSE_"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Auth    AuthConfig    `koanf:"auth"`
	Uploads UploadsConfig `koanf:"uploads"`
	Log     LogConfig     `koanf:"log"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	StaticDir       string        `koanf:"static_dir"`
	// TrustProxy makes the rate limiter key on X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy      bool          `koanf:"trust_proxy"`
}

type StorageConfig struct {
	Backend string `koanf:"backend"` // memory, file or sqlite
	Driver  string `koanf:"driver"`  // sqlite3 (cgo) or sqlite (pure Go)
	Path    string `koanf:"path"`
	DataDir string `koanf:"data_dir"`
	Seed    bool   `koanf:"seed"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	// LoginRate is requests per minute per client IP on login and register.
	LoginRate  float64 `koanf:"login_rate"`
	LoginBurst int     `koanf:"login_burst"`
}

type UploadsConfig struct {
	Dir       string `koanf:"dir"`
	MaxSizeMB int    `koanf:"max_size_mb"`
}

type LogConfig struct {
	Level  zapcore.Level `koanf:"level"`
	Format string        `koanf:"format"` // json or console
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            3001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Driver:  "sqlite3",
			Path:    "data/taskpulse.db",
			DataDir: "data",
			Seed:    true,
		},
		Auth: AuthConfig{
			TokenTTL:   7 * 24 * time.Hour,
			LoginRate:  10,
			LoginBurst: 5,
		},
		Uploads: UploadsConfig{
			Dir:       "uploads",
			MaxSizeMB: 10,
		},
		Log: LogConfig{
			Level:  zapcore.InfoLevel,
			Format: "json",
		},
	}
}

// LoadConfig layers, lowest to highest: built-in defaults, the YAML file at
// path (skipped when path is empty), then TASKPULSE_* environment variables.
//
//	TASKPULSE_SERVER_HTTP_PORT -> server.http_port
//	TASKPULSE_AUTH_JWT_SECRET  -> auth.jwt_secret
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so keys that are absent keep them
	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps an environment variable onto a section.field key. Only the first
// underscore after the prefix separates the section, so field names keep
// theirs.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// splitList expands comma separated entries, which is how list values arrive
// from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the file backend"))
		}
	case "sqlite":
		if c.Storage.Driver != "sqlite3" && c.Storage.Driver != "sqlite" {
			errs = append(errs, fmt.Errorf("storage.driver must be sqlite3 or sqlite, got %q", c.Storage.Driver))
		}
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be memory, file or sqlite, got %q", c.Storage.Backend))
	}

	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.LoginRate <= 0 || c.Auth.LoginBurst < 1 {
		errs = append(errs, errors.New("auth.login_rate and auth.login_burst must be positive"))
	}

	if c.Uploads.Dir == "" {
		errs = append(errs, errors.New("uploads.dir is required"))
	}
	if c.Uploads.MaxSizeMB < 1 {
		errs = append(errs, errors.New("uploads.max_size_mb must be at least 1"))
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
