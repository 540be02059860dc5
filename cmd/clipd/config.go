package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipd/internal/logging"
	"go.klb.dev/clipd/internal/plugin"
)

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPD_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPD_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("clipd")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/clipd/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clipd"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPD")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinter logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool("no-background") || logging.IsTTY(os.Stderr)
	logging.Setup(interactive, v.GetString("log-format"), v.GetString("log-level"))
}

// loadComponents reads the plugin load list:
//
//	[[plugins]]
//	name    = "team"
//	factory = "s3"
//	param   = "s3://bucket/clips?region=eu-west-1"
func loadComponents(v *viper.Viper) ([]plugin.Component, error) {
	var comps []plugin.Component
	if err := v.UnmarshalKey("plugins", &comps); err != nil {
		return nil, fmt.Errorf("config: plugins: %w", err)
	}
	return comps, nil
}
