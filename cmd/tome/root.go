// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/tome/internal/config"
	"github.com/sigil-dev/tome/internal/secrets"
	"github.com/sigil-dev/tome/internal/server"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// NewRootCmd creates the root tome command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tome",
		Short: "tome keeps searchable vector stores in sync with directories",
		Long: `tome indexes directories of text and markdown files into vector stores
and keeps each store in line with its directory as files are added,
edited, made private, or removed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStoresCmd(),
		newStoreCmd(),
		newServeCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	viper.Reset()
	v := viper.GetViper()

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return tomeerr.Errorf(tomeerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so a ./tome binary is never read as config.
		v.SetConfigName("tome")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tome")
		v.AddConfigPath("/etc/tome")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return tomeerr.Errorf(tomeerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(""); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return tomeerr.Errorf(tomeerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return tomeerr.Errorf(tomeerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return tomeerr.Errorf(tomeerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	setupLogger(cmd.ErrOrStderr(), v)

	if path := v.ConfigFileUsed(); path != "" {
		config.WarnInsecurePermissions(path)
	}

	// Unresolved references keep their keyring:// value; commands that need
	// the secret fail later with a clearer message.
	if err := secrets.ResolveViper(v, secretStoreFactory()); err != nil {
		slog.Warn("unresolved keyring reference in config", "error", err)
	}

	server.Version = version
	return nil
}

// setupLogger installs the process-wide slog handler described by the
// log.* keys. --verbose forces debug.
func setupLogger(w io.Writer, v *viper.Viper) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if v.GetString("log.format") == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// loadConfig decodes and validates the configuration resolved by initViper.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}
