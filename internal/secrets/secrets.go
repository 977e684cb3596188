// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps embedding provider credentials in the OS keyring
// and resolves keyring:// references in configuration.
package secrets

import "strings"

// Service is the keyring service tome stores its credentials under.
const Service = "tome"

// Store provides secure secret storage operations.
type Store interface {
	// Set saves a secret value under the given service and key.
	Set(service, key, value string) error

	// Get fetches the secret value for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Get(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	// Returns a CodeSecretNotFound error if the key does not exist.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

// APIKeyName is the keyring key holding the API key for an embedding provider.
func APIKeyName(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + "-api-key"
}

// APIKeyURI is the keyring:// reference for a provider's API key.
func APIKeyURI(provider string) string {
	return keyringScheme + Service + "/" + APIKeyName(provider)
}
