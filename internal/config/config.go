// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g. TOME_SYNC_WORKERS.
const EnvPrefix = "TOME"

// Config is the top-level tome configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Search    SearchConfig    `mapstructure:"search"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string      `mapstructure:"provider"`
	Model      string      `mapstructure:"model"`
	APIKey     string      `mapstructure:"api_key"`
	BaseURL    string      `mapstructure:"base_url"`
	Dimensions int         `mapstructure:"dimensions"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig bounds retries of failed embedding requests.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// SyncConfig controls which files are stored and how fast they are applied.
type SyncConfig struct {
	Extensions    []string      `mapstructure:"extensions"`
	PrivateMarker string        `mapstructure:"private_marker"`
	FileLimit     int           `mapstructure:"file_limit"`
	Workers       int           `mapstructure:"workers"`
	Delay         time.Duration `mapstructure:"delay"`
	NoDelay       bool          `mapstructure:"no_delay"`
}

// SearchConfig holds search defaults for the CLI and REST surfaces.
type SearchConfig struct {
	Limit  int    `mapstructure:"limit"`
	Column string `mapstructure:"column"`
}

// ServerConfig controls the REST server.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.backend", "sqlite")

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.retry.max_attempts", 6)
	v.SetDefault("embedding.retry.base_delay", time.Second)
	v.SetDefault("embedding.retry.max_delay", 20*time.Second)

	v.SetDefault("sync.extensions", []string{".txt", ".md"})
	v.SetDefault("sync.private_marker", "_private")
	v.SetDefault("sync.file_limit", 0)
	v.SetDefault("sync.workers", 1)
	v.SetDefault("sync.delay", 500*time.Millisecond)
	v.SetDefault("sync.no_delay", false)

	v.SetDefault("search.limit", 10)
	v.SetDefault("search.column", "content")

	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// BindEnv makes every key overridable through TOME_-prefixed variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix TOME_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, tomeerr.Errorf(tomeerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

var (
	validProviders  = []string{"openai", "google", "ollama"}
	validBackends   = []string{"sqlite"}
	validColumns    = []string{"title", "content"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks the configuration for logical errors. It collects every
// problem rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, invalid("config: data_dir must not be empty"))
	}
	errs = append(errs, oneOf("storage.backend", c.Storage.Backend, validBackends)...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSync()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, validateListen(c.Server.Listen)...)
	errs = append(errs, oneOf("log.level", strings.ToLower(c.Log.Level), validLogLevels)...)
	errs = append(errs, oneOf("log.format", strings.ToLower(c.Log.Format), validLogFormats)...)

	return errs
}

func (c *Config) validateEmbedding() []error {
	e := c.Embedding
	errs := oneOf("embedding.provider", e.Provider, validProviders)

	if e.Dimensions <= 0 {
		errs = append(errs, invalid("config: embedding.dimensions must be greater than 0, got %d", e.Dimensions))
	}
	if e.Retry.MaxAttempts < 1 {
		errs = append(errs, invalid("config: embedding.retry.max_attempts must be at least 1, got %d", e.Retry.MaxAttempts))
	}
	if e.Retry.BaseDelay < 0 {
		errs = append(errs, invalid("config: embedding.retry.base_delay must not be negative, got %s", e.Retry.BaseDelay))
	}
	if e.Retry.MaxDelay < e.Retry.BaseDelay {
		errs = append(errs, invalid("config: embedding.retry.max_delay (%s) must not be less than base_delay (%s)",
			e.Retry.MaxDelay, e.Retry.BaseDelay))
	}
	return errs
}

func (c *Config) validateSync() []error {
	var errs []error
	s := c.Sync

	if len(s.Extensions) == 0 {
		errs = append(errs, invalid("config: sync.extensions must not be empty"))
	}
	for i, ext := range s.Extensions {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, `/\`) {
			errs = append(errs, invalid("config: sync.extensions[%d] is not a file extension: %q", i, ext))
		}
	}
	if strings.ContainsAny(s.PrivateMarker, `/\`) {
		errs = append(errs, invalid("config: sync.private_marker must be a single path segment, got %q", s.PrivateMarker))
	}
	if s.FileLimit < 0 {
		errs = append(errs, invalid("config: sync.file_limit must not be negative, got %d", s.FileLimit))
	}
	if s.Workers < 1 {
		errs = append(errs, invalid("config: sync.workers must be at least 1, got %d", s.Workers))
	}
	if s.Delay < 0 {
		errs = append(errs, invalid("config: sync.delay must not be negative, got %s", s.Delay))
	}
	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error
	if c.Search.Limit <= 0 {
		errs = append(errs, invalid("config: search.limit must be greater than 0, got %d", c.Search.Limit))
	}
	return append(errs, oneOf("search.column", c.Search.Column, validColumns)...)
}

func validateListen(listen string) []error {
	if listen == "" {
		return []error{invalid("config: server.listen must not be empty")}
	}

	// host can be empty (":8080"), which is valid
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return []error{tomeerr.Errorf(tomeerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", listen, err)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return []error{invalid("config: server.listen port must be a number, got %q", portStr)}
	}
	if port < 1 || port > 65535 {
		return []error{invalid("config: server.listen port must be between 1 and 65535, got %d", port)}
	}
	return nil
}

func oneOf(key, value string, allowed []string) []error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return []error{invalid("config: %s must be one of [%s], got %q", key, strings.Join(allowed, ", "), value)}
}

func invalid(format string, args ...any) error {
	return tomeerr.Errorf(tomeerr.CodeConfigValidateInvalidValue, format, args...)
}
