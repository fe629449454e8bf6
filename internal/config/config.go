package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendSQL    = "sql"
	BackendRedis  = "redis"
)

// EnvPrefix namespaces environment overrides, e.g. PLACECELL_BASE_URL.
const EnvPrefix = "PLACECELL"

type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSec     float64       `mapstructure:"rate_per_sec"`
	RateBurst      int           `mapstructure:"rate_burst"`
	SessionBackend string        `mapstructure:"session_backend"`
	SessionPath    string        `mapstructure:"session_path"`
	SessionDSN     string        `mapstructure:"session_dsn"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
	Profile        string        `mapstructure:"profile"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsFile    string        `mapstructure:"metrics_file"`
}

func defaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("base_url", "http://localhost:5000")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("rate_per_sec", 0.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("session_backend", BackendFile)
	v.SetDefault("session_path", filepath.Join(home, ".placecell", "session.json"))
	v.SetDefault("session_dsn", "")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "placecell")
	v.SetDefault("profile", "default")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_file", "")
}

// Load reads configuration from path, or from placecell.yaml in the working
// directory or $HOME/.placecell when path is empty. A missing default file
// is not an error; a missing explicit file is. PLACECELL_* environment
// variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	if path == "" {
		v.SetConfigName("placecell")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".placecell"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the selected session backend has what it needs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("config: base_url is required")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.RatePerSec < 0 {
		return errors.New("config: rate_per_sec must not be negative")
	}
	switch c.SessionBackend {
	case BackendFile:
		if c.SessionPath == "" {
			return errors.New("config: session_path is required for the file backend")
		}
	case BackendSQL:
		if c.SessionDSN == "" {
			return errors.New("config: session_dsn is required for the sql backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: redis_addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown session_backend %q", c.SessionBackend)
	}
	return nil
}
