package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete mproc configuration
type Config struct {
	Process  ProcessConfig  `mapstructure:"process" yaml:"process"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

// ProcessConfig holds the defaults applied to every supervised process
type ProcessConfig struct {
	// ConsoleBufferMaxLines is the number of console lines retained per process (default: 100)
	ConsoleBufferMaxLines int `mapstructure:"console_buffer_max_lines" yaml:"console_buffer_max_lines"`
	// GracePeriodMs is how long to wait after SIGTERM before force-killing (default: 500)
	GracePeriodMs int `mapstructure:"grace_period_ms" yaml:"grace_period_ms"`
	// KillTimeoutMs is how long to wait after force-kill before giving up (default: 2000)
	KillTimeoutMs int `mapstructure:"kill_timeout_ms" yaml:"kill_timeout_ms"`
	// FailOnNonZeroExit treats a non-success exit code as a failure (default: false)
	FailOnNonZeroExit bool `mapstructure:"fail_on_non_zero_exit" yaml:"fail_on_non_zero_exit"`
}

// LoggingConfig controls supervisor logging
type LoggingConfig struct {
	// Enabled controls whether logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the log file path. Empty logs to stderr.
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus exporter
type MetricsConfig struct {
	// Enabled turns on metric collection (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Address is the listen address for /metrics, e.g. ":9464". Empty disables serving.
	Address string `mapstructure:"address" yaml:"address"`
	// Namespace prefixes every metric name (default: "mproc")
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// DatabaseConfig holds defaults for `mproc initdb`
type DatabaseConfig struct {
	// Driver is one of "mysql", "pgx", "sqlite" (default: "sqlite")
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is the driver-specific data source name
	DSN string `mapstructure:"dsn" yaml:"dsn"`
	// PreconditionSQL decides whether init scripts run. Empty means always run.
	PreconditionSQL string `mapstructure:"precondition_sql" yaml:"precondition_sql"`
	// SkipOnAnyRow skips the scripts whenever the pre-condition returns a row,
	// even a single false or zero value
	SkipOnAnyRow bool `mapstructure:"skip_on_any_row" yaml:"skip_on_any_row"`
	// Scripts are SQL files executed in order
	Scripts []string `mapstructure:"scripts" yaml:"scripts"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Process: ProcessConfig{
			ConsoleBufferMaxLines: 100,
			GracePeriodMs:         500,
			KillTimeoutMs:         2000,
			FailOnNonZeroExit:     false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   "",
			Namespace: "mproc",
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Scripts: []string{},
		},
	}
}

// GracePeriod returns the grace period as a time.Duration
func (c *ProcessConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodMs) * time.Millisecond
}

// KillTimeout returns the kill timeout as a time.Duration
func (c *ProcessConfig) KillTimeout() time.Duration {
	return time.Duration(c.KillTimeoutMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Process defaults
	viper.SetDefault("process.console_buffer_max_lines", defaults.Process.ConsoleBufferMaxLines)
	viper.SetDefault("process.grace_period_ms", defaults.Process.GracePeriodMs)
	viper.SetDefault("process.kill_timeout_ms", defaults.Process.KillTimeoutMs)
	viper.SetDefault("process.fail_on_non_zero_exit", defaults.Process.FailOnNonZeroExit)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.address", defaults.Metrics.Address)
	viper.SetDefault("metrics.namespace", defaults.Metrics.Namespace)

	// Database defaults
	viper.SetDefault("database.driver", defaults.Database.Driver)
	viper.SetDefault("database.dsn", defaults.Database.DSN)
	viper.SetDefault("database.precondition_sql", defaults.Database.PreconditionSQL)
	viper.SetDefault("database.skip_on_any_row", defaults.Database.SkipOnAnyRow)
	viper.SetDefault("database.scripts", defaults.Database.Scripts)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mproc")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mproc"
	}
	return filepath.Join(home, ".config", "mproc")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidDrivers returns the list of supported database/sql driver names
func ValidDrivers() []string {
	return []string{"mysql", "pgx", "sqlite"}
}
