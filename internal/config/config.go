// Package config provides Viper-based configuration loading for the
// skill governance server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds admin HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the admin HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the admin HTTP listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-request read timeout.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-request write timeout.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownGrace is the maximum time to wait for in-flight requests on stop.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings for usage counters and
// skill-update notifications.
type RedisConfig struct {
	// Addr is the "host:port" of the Redis server.
	Addr string `mapstructure:"addr"`
	// Password is the Redis AUTH password; empty means no auth.
	Password string `mapstructure:"password"`
	// DB is the Redis logical database index.
	DB int `mapstructure:"db"`
	// Channel is the pub/sub channel for skill-update notifications.
	Channel string `mapstructure:"channel"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GovernanceConfig holds the balance policy numbers and engine limits.
// The ceilings drive validator warnings and the balance-check suite;
// they are deployment policy, not code.
type GovernanceConfig struct {
	// DPSCeiling is the damage-per-unit-time above which a warning is emitted.
	DPSCeiling float64 `mapstructure:"dps_ceiling"`
	// HPSCeiling is the heal-per-unit-time above which a warning is emitted.
	HPSCeiling float64 `mapstructure:"hps_ceiling"`
	// BuffDurationCeiling is the buff duration above which a warning is emitted.
	BuffDurationCeiling float64 `mapstructure:"buff_duration_ceiling"`
	// DamagePerCostCeiling is the damage-per-resource-point efficiency ceiling.
	DamagePerCostCeiling float64 `mapstructure:"damage_per_cost_ceiling"`
	// ChangeLogCapacity is the maximum number of retained change-log entries.
	ChangeLogCapacity int `mapstructure:"changelog_capacity"`
	// DeleteUsageThreshold is the usage count above which a delete is
	// refused outright rather than routed through approval.
	DeleteUsageThreshold int `mapstructure:"delete_usage_threshold"`
	// TemplateDir is the directory of skill template YAML files.
	TemplateDir string `mapstructure:"template_dir"`
	// CheckDir is the directory of Lua balance-check scripts; empty or
	// missing disables the scripted suite.
	CheckDir string `mapstructure:"check_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Governance GovernanceConfig `mapstructure:"governance"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRedis(c.Redis); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGovernance(c.Governance); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if r.Channel == "" {
		errs = append(errs, "redis.channel must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGovernance(g GovernanceConfig) error {
	var errs []string
	if g.DPSCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("governance.dps_ceiling must be > 0, got %g", g.DPSCeiling))
	}
	if g.HPSCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("governance.hps_ceiling must be > 0, got %g", g.HPSCeiling))
	}
	if g.BuffDurationCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("governance.buff_duration_ceiling must be > 0, got %g", g.BuffDurationCeiling))
	}
	if g.DamagePerCostCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("governance.damage_per_cost_ceiling must be > 0, got %g", g.DamagePerCostCeiling))
	}
	if g.ChangeLogCapacity < 1 {
		errs = append(errs, fmt.Sprintf("governance.changelog_capacity must be >= 1, got %d", g.ChangeLogCapacity))
	}
	if g.DeleteUsageThreshold < 0 {
		errs = append(errs, fmt.Sprintf("governance.delete_usage_threshold must be >= 0, got %d", g.DeleteUsageThreshold))
	}
	if g.TemplateDir == "" {
		errs = append(errs, "governance.template_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKILLFORGE_ prefix
	v.SetEnvPrefix("SKILLFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	if v == nil {
		return Config{}, errors.New("viper instance must not be nil")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_grace", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "skillforge")
	v.SetDefault("database.password", "skillforge")
	v.SetDefault("database.name", "skillforge")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "skill.updates")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("governance.dps_ceiling", 100.0)
	v.SetDefault("governance.hps_ceiling", 80.0)
	v.SetDefault("governance.buff_duration_ceiling", 300.0)
	v.SetDefault("governance.damage_per_cost_ceiling", 10.0)
	v.SetDefault("governance.changelog_capacity", 1000)
	v.SetDefault("governance.delete_usage_threshold", 1000)
	v.SetDefault("governance.template_dir", "content/templates")
	v.SetDefault("governance.check_dir", "content/checks")
}
