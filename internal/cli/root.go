// Package cli implements the tracksync command line.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/thruflo/tracksync/internal/config"
	"github.com/thruflo/tracksync/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "tracksync",
	Short: "Live-edit demo animation tracks from a Rocket timeline editor",
	Long: `tracksync plays a demo's animation tracks and keeps them in sync with a
GNU Rocket compatible timeline editor. Without an editor it plays the tracks
last saved by one.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("tracksync version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
		if err := config.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger builds the logger for a command. quiet discards output unless a
// log file was given, for commands that own the terminal.
func newLogger(cfg *config.Config, quiet bool) (*logging.Logger, func(), error) {
	logger := logging.New()
	logger.SetLevel(cfg.LogLevel())

	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(log.New(f, "", log.LstdFlags|log.Lmicroseconds))
		return logger, func() { f.Close() }, nil
	case quiet:
		logger.SetOutput(log.New(io.Discard, "", 0))
	}
	return logger, func() {}, nil
}
