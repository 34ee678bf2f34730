// Package config handles vhub configuration using Viper.
//
// Sources, lowest precedence first: built-in defaults, ~/.vhub/config.yaml (or --config),
// a .env file in the working directory, and VHUB_* environment variables.
package config

import (
	stderrors "errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/vhub/internal/api"
	"github.com/felixgeelhaar/vhub/internal/credstore"
	"github.com/felixgeelhaar/vhub/internal/errors"
	"github.com/felixgeelhaar/vhub/internal/telemetry"
	"github.com/felixgeelhaar/vhub/internal/version"
)

// EnvPrefix prefixes every environment override (VHUB_API_URL, VHUB_STORE_BACKEND, ...).
const EnvPrefix = "VHUB"

// Config holds the application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api" json:"api"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store" json:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
}

// APIConfig locates the Volunteer Hub backend.
type APIConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" json:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend" json:"backend"`
	Path    string      `mapstructure:"path" yaml:"path" json:"path"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`

	// Passphrase encrypts stored values at rest when set.
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty" json:"passphrase,omitempty"`
}

// RedisConfig holds settings for the redis backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password  string `mapstructure:"password" yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `mapstructure:"db" yaml:"db" json:"db"`
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus textfile written after each command.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}

// TracingConfig controls OpenTelemetry export of command and request spans.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure" json:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
	Environment string  `mapstructure:"environment" yaml:"environment" json:"environment"`
}

// Dir is the per-user vhub directory (~/.vhub).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vhub"
	}
	return filepath.Join(home, ".vhub")
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to read .env", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is OK, we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to read config file", err).
				WithSuggestion("Check the YAML syntax of " + v.ConfigFileUsed())
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Metrics.Textfile = expandHome(cfg.Metrics.Textfile)

	return &cfg, nil
}

// loadDotEnv exports path's variables without overriding ones already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", api.DefaultBaseURL)
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("store.backend", credstore.BackendFile)
	v.SetDefault("store.path", filepath.Join(Dir(), "credentials.json"))
	v.SetDefault("store.passphrase", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.namespace", "default")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", filepath.Join(Dir(), "metrics.prom"))

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if c.API.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfigInvalidError("api.url must be an absolute http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return errors.NewConfigInvalidError("api.timeout must be positive")
	}

	switch c.Store.Backend {
	case credstore.BackendMemory:
	case credstore.BackendFile:
		if c.Store.Path == "" {
			return errors.NewConfigInvalidError("store.path is required for the file backend")
		}
	case credstore.BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.NewConfigInvalidError("store.redis.addr is required for the redis backend")
		}
	default:
		return errors.NewConfigInvalidError("store.backend must be one of memory, file, redis (got " + c.Store.Backend + ")")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return errors.NewConfigInvalidError("tracing.sample_rate must be between 0 and 1")
	}

	return nil
}

// StoreOptions converts the store section for credstore.Open.
func (c *Config) StoreOptions() credstore.Options {
	return credstore.Options{
		Backend:    c.Store.Backend,
		Path:       c.Store.Path,
		Passphrase: c.Store.Passphrase,
		Redis: credstore.RedisOptions{
			Addr:      c.Store.Redis.Addr,
			Password:  c.Store.Redis.Password,
			DB:        c.Store.Redis.DB,
			Namespace: c.Store.Redis.Namespace,
		},
	}
}

// TelemetryConfig converts the tracing section for telemetry.InitProvider.
func (c *Config) TelemetryConfig() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version.Version
	tc.Enabled = c.Tracing.Enabled
	tc.Endpoint = c.Tracing.Endpoint
	tc.Insecure = c.Tracing.Insecure
	tc.SampleRate = c.Tracing.SampleRate
	if c.Tracing.Environment != "" {
		tc.Environment = c.Tracing.Environment
	}
	return tc
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Store.Redis.Password != "" {
		c.Store.Redis.Password = "********"
	}
	if c.Store.Passphrase != "" {
		c.Store.Passphrase = "********"
	}
	return c
}
