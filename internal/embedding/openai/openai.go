// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sigil-dev/tome/internal/embedding"
	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openaisdk.EmbeddingModelTextEmbeddingAda002

func init() {
	embedding.RegisterProvider("openai", func(cfg embedding.ProviderConfig) (embedding.Provider, error) {
		p, err := New(Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model, Dimensions: cfg.Dimensions})
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string // optional; any OpenAI-compatible endpoint
	Model      string
	Dimensions int // sent only to models that accept a dimensions parameter
}

// Provider implements embedding.Provider using the OpenAI Embeddings API.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, tomeerr.New(tomeerr.CodeEmbeddingRequestInvalid,
			"openai: missing api_key in config", tomeerr.FieldProvider("openai"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries belong to embedding.Client.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (p *Provider) Name() string { return "openai" }

// Embed requests a single embedding.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model: openaisdk.EmbeddingModel(p.config.Model),
	}
	if p.config.Dimensions > 0 && supportsDimensions(p.config.Model) {
		params.Dimensions = openaisdk.Int(int64(p.config.Dimensions))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) == 0 {
		return nil, embedding.Permanent(errors.New("openai: response contained no embeddings"))
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// supportsDimensions reports whether the model accepts a dimensions
// parameter. text-embedding-ada-002 rejects it.
func supportsDimensions(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}

// classify marks client errors other than timeouts, conflicts, and rate
// limits as permanent.
func classify(err error) error {
	var apiErr *openaisdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", err)
	}
	switch code := apiErr.StatusCode; {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return fmt.Errorf("openai: status %d: %w", code, err)
	case code >= 400 && code < 500:
		return embedding.Permanent(fmt.Errorf("openai: status %d: %w", code, err))
	default:
		return fmt.Errorf("openai: status %d: %w", code, err)
	}
}
