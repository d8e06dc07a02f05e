package config

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/storesweep/internal/bytesize"
	"github.com/marmos91/storesweep/pkg/sweep"
)

// Default values for fields that have a meaningful "unset" state.
const (
	DefaultStoreRoot  = "/cas/store"
	DefaultControlBin = "casctl"
	DefaultElevate    = "sudo"

	DefaultJournalKeep    = 100
	DefaultJournalMaxSize = 256 * bytesize.MiB

	DefaultTextfileDir = "/var/lib/node_exporter/textfile"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applySweepDefaults(&cfg.Sweep)
	applyJournalDefaults(&cfg.Journal)
	applyMetricsDefaults(&cfg.Metrics)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		// stdout carries previews and the run summary, so logs default to
		// stderr to keep the two streams separable.
		cfg.Output = "stderr"
	}
}

// applyStoreDefaults sets store access defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Root == "" {
		cfg.Root = DefaultStoreRoot
	}
	if cfg.ControlBin == "" {
		cfg.ControlBin = DefaultControlBin
	}
	// Elevate has no implicit default here: an empty value means "run
	// commands directly", which is a valid choice. GetDefaultConfig sets
	// it to sudo for generated config files.
}

// applySweepDefaults sets deletion behavior defaults.
func applySweepDefaults(cfg *SweepConfig) {
	if cfg.Strategy == "" {
		cfg.Strategy = string(sweep.StrategyIterative)
	}

	// A zero worker count in a config file is indistinguishable from
	// unset, so it resolves to the CPU-derived default. Negative counts
	// are rejected by validation.
	if cfg.Workers == 0 {
		cfg.Workers = sweep.DefaultWorkers()
	}

	if cfg.MaxWaves == 0 {
		cfg.MaxWaves = sweep.DefaultMaxWaves
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = sweep.DefaultChunkSize
	}
	if cfg.PreviewLimit == 0 {
		cfg.PreviewLimit = sweep.DefaultPreviewLimit
	}
}

// applyJournalDefaults sets run journal defaults.
func applyJournalDefaults(cfg *JournalConfig) {
	// Enabled is set in GetDefaultConfig; for loaded configs the zero
	// value (false) is a legitimate explicit choice.

	if cfg.Path == "" {
		cfg.Path = filepath.Join(getDataDir(), "journal")
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultJournalMaxSize
	}
	if cfg.Keep == 0 {
		cfg.Keep = DefaultJournalKeep
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.TextfileDir == "" {
		cfg.TextfileDir = DefaultTextfileDir
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Sweeps are short-lived batch runs, so the default profile set stays
	// small: CPU plus live heap.
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"inuse_space",
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Store: StoreConfig{
			Elevate: DefaultElevate,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
