package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"coderag/internal/config"
	"coderag/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string
	flagDataDir  string
)

var rootCmd = &cobra.Command{
	Use:           "coderag",
	Short:         "Semantic code search over locally indexed projects",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding the index database")
}

// loadConfig reads configuration and applies the persistent flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return cfg, nil
}

// setupLogging builds the logger for cfg. quiet keeps log lines off stderr
// for commands that draw to the terminal.
func setupLogging(cfg *config.Config, quiet bool) (*slog.Logger, func(), error) {
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		FilePath: cfg.Log.File,
		Quiet:    quiet,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
