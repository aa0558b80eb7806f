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

// EnvPrefix is prepended to every environment override, e.g.
// MEALGUARD_SERVER_ADDR for server.addr.
const EnvPrefix = "MEALGUARD"

// Config is the service configuration. Policy tables live in their own YAML
// file (policy.path) and are loaded by the policy package.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Policy    PolicyConfig    `mapstructure:"policy" yaml:"policy"`
	Decisions DecisionsConfig `mapstructure:"decisions" yaml:"decisions"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Enforce   EnforceConfig   `mapstructure:"enforce" yaml:"enforce"`
	Quota     QuotaConfig     `mapstructure:"quota" yaml:"quota"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type PolicyConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

type DecisionsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// LoggerConfig holds the zap and lumberjack settings.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	File        string `mapstructure:"file" yaml:"file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

type EnforceConfig struct {
	StrictSubstitutes bool `mapstructure:"strict_substitutes" yaml:"strict_substitutes"`
}

type QuotaConfig struct {
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
}

// Location resolves the quota day boundary timezone. Empty means UTC.
func (q QuotaConfig) Location() (*time.Location, error) {
	if q.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quota.timezone: %w", err)
	}
	return loc, nil
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	home := homeDir()

	// -- Server --
	v.SetDefault("server.addr", "127.0.0.1:8870")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// -- Storage --
	v.SetDefault("storage.path", filepath.Join(home, ".mealguard", "mealguard.db"))

	// -- Policy --
	v.SetDefault("policy.path", "")
	v.SetDefault("policy.watch", true)

	// -- Decisions --
	v.SetDefault("decisions.dir", filepath.Join(home, ".mealguard", "decisions"))

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "mealguard")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Enforce --
	v.SetDefault("enforce.strict_substitutes", false)

	// -- Quota --
	v.SetDefault("quota.timezone", "UTC")
}

// New returns a viper instance with defaults and MEALGUARD_ env bindings.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path (if any) on top of defaults and env.
// Empty path looks for config.yaml in ~/.mealguard and the working dir; a
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := New()
	if err := ReadInConfig(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ReadInConfig loads the config file into v. An explicit path must exist;
// the default search locations may be empty.
func ReadInConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".mealguard"))
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := FromViper(v)
	if err != nil {
		panic(err) // defaults are static
	}
	return cfg
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive durations")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if _, err := c.Quota.Location(); err != nil {
		return err
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
