// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"slices"
	"sync"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// ProviderConfig carries the settings every provider factory receives.
// Providers ignore fields they have no use for.
type ProviderConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// ProviderFactory builds a Provider from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

var (
	providerFactories = map[string]ProviderFactory{}
	providersMu       sync.RWMutex
)

// RegisterProvider registers a named provider factory. Provider packages
// call this from init(). This function is goroutine-safe.
func RegisterProvider(name string, f ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providerFactories[name] = f
}

// NewProvider builds the provider registered under name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	providersMu.RLock()
	f, ok := providerFactories[name]
	providersMu.RUnlock()
	if !ok {
		return nil, tomeerr.New(tomeerr.CodeEmbeddingProviderUnknown,
			"unknown embedding provider: "+name, tomeerr.FieldProvider(name))
	}
	return f(cfg)
}

// Providers lists registered provider names in sorted order.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
