package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural problems: missing
// required fields, out-of-range values, and cross-field combinations the
// struct tags cannot express.
//
// Validation never mutates the config. Normalization (e.g. uppercasing the
// log level) happens in ApplyDefaults before Validate runs.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return validateCrossFields(cfg)
}

// validateCrossFields checks rules that span multiple fields.
func validateCrossFields(cfg *Config) error {
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal is enabled but journal.path is empty")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.TextfileDir == "" {
		return fmt.Errorf("metrics are enabled but metrics.textfile_dir is empty")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but telemetry.endpoint is empty")
	}

	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but telemetry.profiling.endpoint is empty")
	}

	return nil
}
