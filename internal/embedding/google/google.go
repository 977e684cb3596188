// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/sigil-dev/tome/internal/embedding"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "text-embedding-004"

func init() {
	embedding.RegisterProvider("google", func(cfg embedding.ProviderConfig) (embedding.Provider, error) {
		p, err := New(Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Dimensions: cfg.Dimensions})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Config holds Google provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Provider implements embedding.Provider using the Gemini embedContent API.
type Provider struct {
	client *genai.Client
	config Config
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, tomeerr.New(tomeerr.CodeEmbeddingRequestInvalid,
			"google: missing api_key in config", tomeerr.FieldProvider("google"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, tomeerr.Wrapf(err, tomeerr.CodeEmbeddingRequestInvalid, "google: creating client")
	}

	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string { return "google" }

// Embed requests a single embedding.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	var cfg *genai.EmbedContentConfig
	if p.config.Dimensions > 0 {
		cfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(int32(p.config.Dimensions))}
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.config.Model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, embedding.Permanent(errors.New("google: response contained no embeddings"))
	}
	return resp.Embeddings[0].Values, nil
}

func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("google: %w", err)
	}
	switch code := apiErr.Code; {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return fmt.Errorf("google: status %d: %w", code, err)
	case code >= 400 && code < 500:
		return embedding.Permanent(fmt.Errorf("google: status %d: %w", code, err))
	default:
		return fmt.Errorf("google: status %d: %w", code, err)
	}
}
