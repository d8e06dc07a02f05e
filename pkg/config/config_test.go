package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/storesweep/internal/bytesize"
	"github.com/marmos91/storesweep/pkg/sweep"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config; everything else should come from defaults
	configContent := `
logging:
  level: "INFO"

store:
  root: "/cas/store"

journal:
  enabled: true
  path: "` + yamlSafePath(tmpDir) + `/journal"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Store.ControlBin != DefaultControlBin {
		t.Errorf("Expected default control binary %q, got %q", DefaultControlBin, cfg.Store.ControlBin)
	}
	if cfg.Sweep.Strategy != string(sweep.StrategyIterative) {
		t.Errorf("Expected default strategy 'iterative', got %q", cfg.Sweep.Strategy)
	}
	if cfg.Sweep.MaxWaves != sweep.DefaultMaxWaves {
		t.Errorf("Expected default max waves %d, got %d", sweep.DefaultMaxWaves, cfg.Sweep.MaxWaves)
	}
	if cfg.Sweep.Workers <= 0 {
		t.Errorf("Expected positive default worker count, got %d", cfg.Sweep.Workers)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows running dead-path queries without writing a config first.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	// Verify default config is returned
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	if cfg.Store.Root != DefaultStoreRoot {
		t.Errorf("Expected default store root %q, got %q", DefaultStoreRoot, cfg.Store.Root)
	}
	if cfg.Store.ControlBin != DefaultControlBin {
		t.Errorf("Expected default control binary %q, got %q", DefaultControlBin, cfg.Store.ControlBin)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidStrategy(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
sweep:
  strategy: "aggressive"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Validation should reject the unknown strategy
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for unknown strategy, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[store]
root = "/cas/store"
control_bin = "casctl"

[sweep]
strategy = "quick"
workers = 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Sweep.Strategy != "quick" {
		t.Errorf("Expected strategy 'quick', got %q", cfg.Sweep.Strategy)
	}
	if cfg.Sweep.Workers != 8 {
		t.Errorf("Expected workers 8, got %d", cfg.Sweep.Workers)
	}
}

func TestLoad_DecodeHooks(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Human-readable sizes and durations should decode via the hooks
	configContent := `
store:
  root: "/cas/store"
  command_timeout: "90s"

journal:
  enabled: true
  path: "` + yamlSafePath(tmpDir) + `/journal"
  max_size: "64MiB"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Store.CommandTimeout != 90*time.Second {
		t.Errorf("Expected command timeout 90s, got %v", cfg.Store.CommandTimeout)
	}
	if cfg.Journal.MaxSize != 64*bytesize.MiB {
		t.Errorf("Expected journal max size 64MiB, got %v", cfg.Journal.MaxSize)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// Verify all defaults are set
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default log output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Store.Root != DefaultStoreRoot {
		t.Errorf("Expected default store root %q, got %q", DefaultStoreRoot, cfg.Store.Root)
	}
	if cfg.Store.Elevate != DefaultElevate {
		t.Errorf("Expected default elevation %q, got %q", DefaultElevate, cfg.Store.Elevate)
	}
	if cfg.Sweep.Strategy != string(sweep.StrategyIterative) {
		t.Errorf("Expected default strategy 'iterative', got %q", cfg.Sweep.Strategy)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Sweep.Workers = 12

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG' after round trip, got %q", loaded.Logging.Level)
	}
	if loaded.Sweep.Workers != 12 {
		t.Errorf("Expected workers 12 after round trip, got %d", loaded.Sweep.Workers)
	}
	if loaded.Store.ControlBin != cfg.Store.ControlBin {
		t.Errorf("Expected control binary %q after round trip, got %q", cfg.Store.ControlBin, loaded.Store.ControlBin)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "storesweep" {
		t.Errorf("Expected directory name 'storesweep', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("STORESWEEP_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("STORESWEEP_SWEEP_WORKERS", "7")
	defer func() {
		_ = os.Unsetenv("STORESWEEP_LOGGING_LEVEL")
		_ = os.Unsetenv("STORESWEEP_SWEEP_WORKERS")
	}()

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

sweep:
  workers: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Sweep.Workers != 7 {
		t.Errorf("Expected workers 7 from env var, got %d", cfg.Sweep.Workers)
	}
}
