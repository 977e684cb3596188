// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sigil-dev/tome/internal/embedding"
)

// Defaults for a local Ollama install.
const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "nomic-embed-text"
)

func init() {
	embedding.RegisterProvider("ollama", func(cfg embedding.ProviderConfig) (embedding.Provider, error) {
		return New(Config{Host: cfg.BaseURL, Model: cfg.Model}), nil
	})
}

// Config holds Ollama provider configuration.
type Config struct {
	Host  string
	Model string
}

// Provider implements embedding.Provider against Ollama's /api/embed.
type Provider struct {
	host       string
	model      string
	httpClient *http.Client
}

// embedRequest is the request body for Ollama's /api/embed endpoint.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the response from Ollama's /api/embed endpoint.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New creates an Ollama provider. Empty fields fall back to the defaults.
func New(cfg Config) *Provider {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		host:  host,
		model: model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *Provider) Name() string { return "ollama" }

// Embed returns the embedding vector for the given text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, embedding.Permanent(fmt.Errorf("marshal embed request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, embedding.Permanent(fmt.Errorf("ollama: building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		// A missing model or malformed request will not fix itself.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, embedding.Permanent(err)
		}
		return nil, err
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, embedding.Permanent(errors.New("ollama returned empty embeddings"))
	}

	return result.Embeddings[0], nil
}
