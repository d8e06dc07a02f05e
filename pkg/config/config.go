package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/storesweep/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the storesweep configuration.
//
// This structure captures the static configuration of the sweeper:
//   - Logging configuration
//   - Store access (root directory, control binary, privilege elevation)
//   - Sweep behavior (strategy, workers, wave and batch limits)
//   - Run journal (local history of past sweeps)
//   - Metrics export (Prometheus textfile for node_exporter)
//   - Telemetry/tracing configuration
//
// Per-invocation choices (selection mode, dry-run, confirmation) are CLI
// flags, not configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (STORESWEEP_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Store configures access to the content-addressed store
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Sweep controls deletion behavior
	Sweep SweepConfig `mapstructure:"sweep" yaml:"sweep"`

	// Journal configures the local run history
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// Metrics configures Prometheus textfile export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stderr, stdout, or a file path. The default is stderr
	// because stdout carries previews and the machine-readable summary.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// StoreConfig configures access to the content-addressed store.
type StoreConfig struct {
	// Root is the store root directory, the one whole-store sweeps list
	Root string `mapstructure:"root" validate:"required" yaml:"root"`

	// ControlBin is the store control binary used for liveness queries,
	// deletions, and compaction
	ControlBin string `mapstructure:"control_bin" validate:"required" yaml:"control_bin"`

	// Elevate selects privilege elevation for destructive commands.
	// Valid values: "sudo" or empty (run commands directly)
	Elevate string `mapstructure:"elevate" validate:"omitempty,oneof=sudo" yaml:"elevate,omitempty"`

	// CommandTimeout bounds a single control command invocation.
	// Zero means no limit; deletes of large closures can legitimately
	// run for minutes.
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"omitempty,gt=0" yaml:"command_timeout,omitempty"`
}

// SweepConfig controls deletion behavior.
type SweepConfig struct {
	// Strategy is the default deletion strategy
	// Valid values: quick, iterative
	Strategy string `mapstructure:"strategy" validate:"required,oneof=quick iterative" yaml:"strategy"`

	// Workers is the deletion worker pool size
	// Default: number of CPUs, clamped to [4, 32]
	Workers int `mapstructure:"workers" validate:"required,gt=0" yaml:"workers"`

	// MaxWaves bounds the iterative strategy's retry loop
	MaxWaves int `mapstructure:"max_waves" validate:"required,gt=0" yaml:"max_waves"`

	// ChunkSize is the number of paths per delete invocation
	ChunkSize int `mapstructure:"chunk_size" validate:"required,gt=0" yaml:"chunk_size"`

	// PreviewLimit caps path listings in previews; 0 disables the cap
	PreviewLimit int `mapstructure:"preview_limit" validate:"gte=0" yaml:"preview_limit"`
}

// JournalConfig configures the local run history.
type JournalConfig struct {
	// Enabled controls whether completed runs are recorded
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Path is the journal database directory
	Path string `mapstructure:"path" yaml:"path"`

	// MaxSize bounds the journal database value log
	// Supports human-readable formats: "256MiB", "1Gi"
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size,omitempty"`

	// Keep is how many runs `storesweep history prune` retains
	Keep int `mapstructure:"keep" validate:"gte=0" yaml:"keep"`
}

// MetricsConfig configures Prometheus textfile export. After each run the
// sweeper rewrites one .prom file for the node_exporter textfile collector;
// there is no long-lived process to scrape.
type MetricsConfig struct {
	// Enabled controls whether run metrics are written
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// TextfileDir is the node_exporter textfile collector directory
	TextfileDir string `mapstructure:"textfile_dir" yaml:"textfile_dir"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (STORESWEEP_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages. It checks if
// the config file exists and provides instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  storesweep config init\n\n"+
				"Or specify a custom config file:\n"+
				"  storesweep <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  storesweep config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML
// form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the STORESWEEP_ prefix and underscores
	// Example: STORESWEEP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("STORESWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/storesweep/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Also check for os.PathError when the explicit config file is missing
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// so config files can use human-readable sizes like "256MiB" or "1Gi".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config files
// can use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "storesweep")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "storesweep")
}

// getDataDir returns the data directory path used for journal storage.
//
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "storesweep")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "storesweep")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// config init command).
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the data directory path (exposed for the journal).
func GetDataDir() string {
	return getDataDir()
}
