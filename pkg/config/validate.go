package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "policy.workers").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateControls(&cfg.Controls)...)
	errs = append(errs, validateRisk(&cfg.Risk)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if cfg.SourceDir == "" && cfg.Git.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "policy.source_dir",
			Message: "source directory is required when no git repository is configured",
		})
	}
	if cfg.CompiledDir == "" {
		errs = append(errs, FieldError{
			Field:   "policy.compiled_dir",
			Message: "compiled directory is required",
		})
	}
	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "policy.workers",
			Message: fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
		})
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.max_file_size",
			Message: "max file size must be positive",
		})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.debounce",
			Message: "debounce must not be negative",
		})
	}
	if cfg.Git.Repository != "" && cfg.Git.Branch == "" {
		errs = append(errs, FieldError{
			Field:   "policy.git.branch",
			Message: "branch is required when a git repository is configured",
		})
	}

	return errs
}

func validateControls(cfg *ControlsConfig) []FieldError {
	var errs []FieldError

	for i, req := range cfg.ApprovalRequirements {
		field := fmt.Sprintf("controls.approval_requirements[%d]", i)
		if req.Role == "" {
			errs = append(errs, FieldError{Field: field + ".role", Message: "role is required"})
		}
		if req.Count < 1 {
			errs = append(errs, FieldError{
				Field:   field + ".count",
				Message: fmt.Sprintf("count must be at least 1, got %d", req.Count),
			})
		}
	}

	for i, pattern := range cfg.Environment.Production {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("controls.environment_patterns.production[%d]", i),
				Message: fmt.Sprintf("invalid regular expression %q: %v", pattern, err),
			})
		}
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "controls.timeout",
			Message: "timeout must be positive",
		})
	}

	return errs
}

func validateRisk(cfg *RiskConfig) []FieldError {
	var errs []FieldError

	if cfg.ThresholdHigh < 0 || cfg.ThresholdHigh > 100 {
		errs = append(errs, FieldError{
			Field:   "risk.threshold_high",
			Message: fmt.Sprintf("threshold must be between 0 and 100, got %d", cfg.ThresholdHigh),
		})
	}
	if cfg.ThresholdMedium < 0 || cfg.ThresholdMedium > 100 {
		errs = append(errs, FieldError{
			Field:   "risk.threshold_medium",
			Message: fmt.Sprintf("threshold must be between 0 and 100, got %d", cfg.ThresholdMedium),
		})
	}
	if cfg.ThresholdMedium > cfg.ThresholdHigh {
		errs = append(errs, FieldError{
			Field:   "risk.threshold_medium",
			Message: "medium threshold must not exceed high threshold",
		})
	}
	if cfg.LargeChangeLOC < 0 {
		errs = append(errs, FieldError{
			Field:   "risk.large_change_loc",
			Message: "large change line count must not be negative",
		})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.Workers < 1 {
		errs = append(errs, FieldError{
			Field:   "engine.workers",
			Message: fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
		})
	}
	for i, label := range cfg.OverrideLabels {
		if strings.TrimSpace(label) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("engine.override_labels[%d]", i),
				Message: "label must not be empty",
			})
		}
	}

	return errs
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	validBackends := map[string]bool{"memory": true, "sqlite": true}
	if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Backend == "sqlite" {
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		validDrivers := map[string]bool{"modernc": true, "mattn": true}
		if !validDrivers[cfg.SQLite.Driver] {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'modernc' or 'mattn'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{
				Field:   "evidence.sqlite.max_open_conns",
				Message: "max open connections must be at least 1",
			})
		}
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.days",
			Message: "retention days must not be negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.max_records",
			Message: "max records must not be negative",
		})
	}
	if cfg.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "evidence.retention.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.Schedule, err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.namespace",
			Message: "metrics namespace is required when metrics are enabled",
		})
	}
	for i := 1; i < len(cfg.Metrics.DurationBuckets); i++ {
		if cfg.Metrics.DurationBuckets[i] <= cfg.Metrics.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	return errs
}
