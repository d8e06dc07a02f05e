package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/storesweep/internal/cli/output"
	"github.com/marmos91/storesweep/internal/logger"
	"github.com/marmos91/storesweep/pkg/config"
	"github.com/marmos91/storesweep/pkg/store"
)

// loadConfig loads the configuration and initializes the logger from it.
// Every command that touches the store goes through here first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// buildStore assembles the real store client from configuration.
func buildStore(cfg *config.Config) *store.ExecStore {
	session := store.NewSession(cfg.Store.Elevate)
	st := store.NewExecStore(cfg.Store.ControlBin, session)
	if cfg.Store.CommandTimeout > 0 {
		st.SetCommandTimeout(cfg.Store.CommandTimeout)
	}
	return st
}

// getPrinter builds a Printer honoring the global --output flag.
func getPrinter() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, format == output.FormatTable), nil
}
