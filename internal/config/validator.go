package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "process.grace_period_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateProcess()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateDatabase()...)

	return errors
}

// validateProcess validates the ProcessConfig
func (c *Config) validateProcess() []ValidationError {
	var errors []ValidationError

	if c.Process.ConsoleBufferMaxLines <= 0 {
		errors = append(errors, ValidationError{
			Field:   "process.console_buffer_max_lines",
			Value:   c.Process.ConsoleBufferMaxLines,
			Message: "must be positive",
		})
	}

	// Upper bound on retained lines per process
	const maxBufferLines = 1_000_000
	if c.Process.ConsoleBufferMaxLines > maxBufferLines {
		errors = append(errors, ValidationError{
			Field:   "process.console_buffer_max_lines",
			Value:   c.Process.ConsoleBufferMaxLines,
			Message: fmt.Sprintf("exceeds maximum of %d", maxBufferLines),
		})
	}

	if c.Process.GracePeriodMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "process.grace_period_ms",
			Value:   c.Process.GracePeriodMs,
			Message: "must be non-negative",
		})
	}

	if c.Process.KillTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "process.kill_timeout_ms",
			Value:   c.Process.KillTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Namespace) == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.namespace",
			Value:   c.Metrics.Namespace,
			Message: "must not be empty when metrics are enabled",
		})
	}

	if strings.ContainsAny(c.Metrics.Namespace, " -.") {
		errors = append(errors, ValidationError{
			Field:   "metrics.namespace",
			Value:   c.Metrics.Namespace,
			Message: "must contain only letters, digits and underscores",
		})
	}

	return errors
}

// validateDatabase validates the DatabaseConfig
func (c *Config) validateDatabase() []ValidationError {
	var errors []ValidationError

	if c.Database.Driver != "" && !slices.Contains(ValidDrivers(), c.Database.Driver) {
		errors = append(errors, ValidationError{
			Field:   "database.driver",
			Value:   c.Database.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidDrivers(), ", ")),
		})
	}

	for i, script := range c.Database.Scripts {
		if strings.TrimSpace(script) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("database.scripts[%d]", i),
				Value:   script,
				Message: "must not be empty",
			})
		}
	}

	return errors
}
