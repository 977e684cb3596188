// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/sigil-dev/tome/internal/collection"
	"github.com/sigil-dev/tome/internal/config"
	"github.com/sigil-dev/tome/internal/embedding"
	_ "github.com/sigil-dev/tome/internal/embedding/google" // register google provider
	_ "github.com/sigil-dev/tome/internal/embedding/ollama" // register ollama provider
	_ "github.com/sigil-dev/tome/internal/embedding/openai" // register openai provider
	"github.com/sigil-dev/tome/internal/reconcile"
	"github.com/sigil-dev/tome/internal/secrets"
	"github.com/sigil-dev/tome/internal/store"
	_ "github.com/sigil-dev/tome/internal/store/sqlite" // register sqlite backend
	"github.com/sigil-dev/tome/internal/walker"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// providerKeyEnv lists the conventional environment variables each provider
// reads its API key from when the config leaves embedding.api_key empty.
var providerKeyEnv = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"google": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// embeddingClientFactory builds the embedding client from config. It is a
// package-level variable so tests can substitute a fake provider.
var embeddingClientFactory = newEmbeddingClient

func newEmbeddingClient(cfg *config.Config) (*embedding.Client, error) {
	ec := cfg.Embedding
	p, err := embedding.NewProvider(ec.Provider, embedding.ProviderConfig{
		Model:      ec.Model,
		APIKey:     resolveAPIKey(ec),
		BaseURL:    ec.BaseURL,
		Dimensions: ec.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	policy := embedding.RetryPolicy{
		MaxAttempts: ec.Retry.MaxAttempts,
		BaseDelay:   ec.Retry.BaseDelay,
		MaxDelay:    ec.Retry.MaxDelay,
	}
	return embedding.NewClient(p, ec.Dimensions,
		embedding.WithRetryPolicy(policy),
		embedding.WithLogger(slog.Default().With("component", "embedding")))
}

// resolveAPIKey picks the provider API key: the config value, then the
// provider's environment variables, then the OS keyring.
func resolveAPIKey(ec config.EmbeddingConfig) string {
	if ec.APIKey != "" && !secrets.IsKeyringURI(ec.APIKey) {
		return ec.APIKey
	}
	for _, name := range providerKeyEnv[ec.Provider] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	if _, ok := providerKeyEnv[ec.Provider]; !ok {
		return ""
	}
	key, err := secretStoreFactory().Get(secrets.Service, secrets.APIKeyName(ec.Provider))
	if err != nil {
		slog.Debug("no api key in keyring", "provider", ec.Provider, "error", err)
		return ""
	}
	return key
}

// app holds the subsystems a command needs for one invocation.
type app struct {
	cfg     *config.Config
	manager *collection.Manager
	client  *embedding.Client
}

// openApp loads config and opens the store catalog. With embed set an
// embedding client is built as well, so stores can be opened.
func openApp(embed bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	a := &app{cfg: cfg}
	opts := []collection.Option{collection.WithLogger(slog.Default())}
	if embed {
		a.client, err = embeddingClientFactory(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, collection.WithEmbedder(a.client))
	}

	storeCfg := &store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		VectorDimensions: cfg.Embedding.Dimensions,
	}
	a.manager, err = collection.NewManager(cfg.DataDir, storeCfg, opts...)
	if err != nil {
		return nil, tomeerr.Errorf(tomeerr.CodeCLISetupFailure, "opening store catalog: %w", err)
	}
	return a, nil
}

// engine builds a reconcile engine for one opened collection.
func (a *app) engine(c *collection.Collection, opts ...reconcile.Option) (*reconcile.Engine, error) {
	root := c.Location()
	f := walker.NewFilter(root, walker.FilterConfig{
		Extensions:    a.cfg.Sync.Extensions,
		PrivateMarker: a.cfg.Sync.PrivateMarker,
	})

	base := []reconcile.Option{reconcile.WithLogger(slog.Default().With("store", c.Name()))}
	if a.client != nil {
		base = append(base, reconcile.WithEmbeddingMetrics(a.client))
	}
	opts = append(base, opts...)

	return reconcile.New(c.Store, walker.New(root), f, reconcile.Config{
		FileLimit: a.cfg.Sync.FileLimit,
		Workers:   a.cfg.Sync.Workers,
		Delay:     a.cfg.Sync.Delay,
		NoDelay:   a.cfg.Sync.NoDelay,
	}, opts...)
}

func (a *app) Close() error {
	return a.manager.Shutdown()
}
