// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/sigil-dev/tome/internal/config"
	"github.com/sigil-dev/tome/internal/embedding"
	"github.com/sigil-dev/tome/internal/secrets"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check configuration, the store catalog, the embedding provider and its API key, and disk space.",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	cfg, cfgErr := loadConfig()
	dataDir := viper.GetString("data_dir")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Config", func() string { return checkConfig(cfgErr) }},
		{"Stores", func() string { return checkStores(cmd.Context(), cfgErr) }},
		{"Embedding", func() string { return checkEmbedding(cfg) }},
		{"API Key", func() string { return checkAPIKey(cfg) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("tome %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkConfig(err error) string {
	if err != nil {
		return fmt.Sprintf("invalid: %s", err)
	}
	if cfgFile := viper.ConfigFileUsed(); cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkStores(ctx context.Context, cfgErr error) string {
	if cfgErr != nil {
		return "skipped (config invalid)"
	}
	a, err := openApp(false)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	defer func() { _ = a.Close() }()

	recs, err := a.manager.List(ctx)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%d store(s) in %s", len(recs), a.cfg.DataDir)
}

func checkEmbedding(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	ec := cfg.Embedding
	if !slices.Contains(embedding.Providers(), ec.Provider) {
		return fmt.Sprintf("unknown provider %q (available: %v)", ec.Provider, embedding.Providers())
	}
	model := ec.Model
	if model == "" {
		model = "default model"
	}
	return fmt.Sprintf("%s, %s, %d dimensions", ec.Provider, model, ec.Dimensions)
}

func checkAPIKey(cfg *config.Config) string {
	if cfg == nil {
		return "skipped (config invalid)"
	}
	ec := cfg.Embedding
	if _, needsKey := providerKeyEnv[ec.Provider]; !needsKey {
		return "not required"
	}
	switch {
	case secrets.IsKeyringURI(ec.APIKey):
		return fmt.Sprintf("unresolved reference %s (run 'tome secret set %s')", ec.APIKey, ec.Provider)
	case ec.APIKey != "":
		return "set in config"
	}
	for _, name := range providerKeyEnv[ec.Provider] {
		if os.Getenv(name) != "" {
			return "set via " + name
		}
	}
	if _, err := secretStoreFactory().Get(secrets.Service, secrets.APIKeyName(ec.Provider)); err == nil {
		return "stored in keyring"
	}
	return fmt.Sprintf("missing (run 'tome secret set %s')", ec.Provider)
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Fall back to home directory if data dir doesn't exist yet.
		path, _ = os.UserHomeDir()
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
