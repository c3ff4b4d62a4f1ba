// Package config loads capscan settings.
//
// Settings come from, in increasing precedence: built-in defaults, the
// config file, CAPSCAN_* environment variables and command line flags.
// Nested keys map to environment variables with dots replaced by
// underscores, so database.path is CAPSCAN_DATABASE_PATH.
//
// Config file locations (priority order):
//  1. $CAPSCAN_CONFIG
//  2. ./capscan.yaml
//  3. $XDG_CONFIG_HOME/capscan/config.yaml
//  4. ~/.config/capscan/config.yaml
//  5. /etc/capscan/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "CAPSCAN"

// Config is the root configuration structure
type Config struct {
	Cloud     string          `mapstructure:"cloud" yaml:"cloud"`
	Tenant    string          `mapstructure:"tenant" yaml:"tenant,omitempty"`
	Inventory string          `mapstructure:"inventory" yaml:"inventory,omitempty"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// DatabaseConfig locates the snapshot database
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RedisConfig configures the point-lookup cache. An empty Addr disables it.
type RedisConfig struct {
	Addr   string        `mapstructure:"addr" yaml:"addr,omitempty"`
	Prefix string        `mapstructure:"prefix" yaml:"prefix"`
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// DiscoveryConfig tunes discovery passes
type DiscoveryConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// ReportConfig holds report defaults
type ReportConfig struct {
	Count  int    `mapstructure:"count" yaml:"count"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// ReportFormats lists the accepted report.format values
var ReportFormats = []string{"text", "json", "yaml"}

var defaults = map[string]any{
	"cloud":                 "src",
	"database.path":         "./capscan.db",
	"redis.prefix":          "capscan:",
	"redis.ttl":             10 * time.Minute,
	"discovery.concurrency": 4,
	"report.count":          10,
	"report.format":         "text",
	"log.level":             "info",
	"log.development":       false,
}

// flagKeys maps command line flag names to config keys
var flagKeys = map[string]string{
	"cloud":       "cloud",
	"tenant":      "tenant",
	"inventory":   "inventory",
	"db":          "database.path",
	"redis":       "redis.addr",
	"concurrency": "discovery.concurrency",
	"count":       "report.count",
	"format":      "report.format",
	"log-level":   "log.level",
}

// DefaultConfig returns the built-in defaults, ignoring the environment
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration. An empty path searches SearchPaths; a missing
// file is not an error then. flags may be nil. The returned string is the
// file that was read, if any.
func Load(path string, flags *pflag.FlagSet) (*Config, string, error) {
	v := newViper()

	if path == "" {
		path = FindConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, path, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows
	for _, key := range []string{"tenant", "inventory", "redis.addr"} {
		_ = v.BindEnv(key)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Cloud == "" {
		errs = append(errs, errors.New("cloud must not be empty"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Discovery.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("discovery.concurrency must be positive, got %d", c.Discovery.Concurrency))
	}
	if c.Report.Count < 0 {
		errs = append(errs, fmt.Errorf("report.count must not be negative, got %d", c.Report.Count))
	}
	if !slices.Contains(ReportFormats, c.Report.Format) {
		errs = append(errs, fmt.Errorf("report.format must be one of %v, got %q", ReportFormats, c.Report.Format))
	}
	if c.Redis.TTL < 0 {
		errs = append(errs, fmt.Errorf("redis.ttl must not be negative, got %s", c.Redis.TTL))
	}
	return errors.Join(errs...)
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
