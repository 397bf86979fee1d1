// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Rise-Building-Technology/bacnet-sim-ci/config"
	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor CONFIG_FILE
// select a configuration file.
const defaultConfigPath = "config/devices.yaml"

var (
	// global flags
	configFile string
	logLevel   string
	logFormat  string

	// set during PersistentPreRunE
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bacnetsim",
	Short: "Simulate a fleet of building automation devices",
	Long: `Bacnetsim simulates many building automation controllers, each one
bound to its own IP address with its own object table, reachable over a
datagram property protocol and managed through an HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "",
		"configuration file (default $CONFIG_FILE or "+defaultConfigPath+")")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

// configPath returns the configuration file to load. An empty path
// selects the built-in configuration.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if env := os.Getenv("CONFIG_FILE"); env != "" {
		return env
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}

// loadConfig loads the configuration, applies the environment
// overrides and validates the result.
func loadConfig() (*config.Simulator, string, error) {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, path, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	logger.Debug("configLoaded", slog.String("path", path), slog.Int("devices", len(cfg.Devices)))
	return cfg, path, nil
}

// describePath returns a printable name for a configuration path.
func describePath(path string) string {
	if path == "" {
		return "built-in default"
	}
	return fmt.Sprintf("%q", path)
}
