// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/health"
)

// Provider is a single embedding backend. Implementations make exactly one
// upstream call per Embed and leave retrying to the Client.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// permanentError marks a provider failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Client wraps a Provider with retry, dimension checking, and bookkeeping.
// It is safe for concurrent use.
type Client struct {
	provider   Provider
	dimensions int
	retry      RetryPolicy
	logger     *slog.Logger

	inFlight    atomic.Int64
	completed   atomic.Int64
	failed      atomic.Int64
	retries     atomic.Int64
	lastFailure atomic.Pointer[time.Time]
	lastSuccess atomic.Pointer[time.Time]
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client that expects vectors of the given length.
func NewClient(p Provider, dimensions int, opts ...Option) (*Client, error) {
	if p == nil {
		return nil, tomeerr.New(tomeerr.CodeEmbeddingRequestInvalid, "embedding client requires a provider")
	}
	if dimensions <= 0 {
		return nil, tomeerr.Errorf(tomeerr.CodeEmbeddingRequestInvalid,
			"embedding dimensions must be positive, got %d", dimensions)
	}

	c := &Client{
		provider:   p,
		dimensions: dimensions,
		retry:      DefaultRetryPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.retry.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the underlying provider name.
func (c *Client) Name() string { return c.provider.Name() }

// Dimensions returns the vector length every successful Embed returns.
func (c *Client) Dimensions() int { return c.dimensions }

// Embed returns the embedding of text. Transient provider failures are
// retried per the client's RetryPolicy; once the budget is spent, or on a
// permanent failure, the error carries the embedding.upstream.unavailable
// code. Context cancellation is returned as the context's own error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	name := c.provider.Name()

	c.inFlight.Add(1)
	inFlightGauge.Inc()
	defer func() {
		c.inFlight.Add(-1)
		inFlightGauge.Dec()
	}()

	var vec []float32
	attempts, err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.retries.Add(1)
			retriesTotal.WithLabelValues(name).Inc()
		}

		v, err := c.provider.Embed(ctx, text)
		if err != nil {
			c.logger.Debug("embedding attempt failed",
				"provider", name, "attempt", attempt, "error", err)
			return err
		}
		if len(v) != c.dimensions {
			return Permanent(fmt.Errorf("%s returned %d dimensions, expected %d", name, len(v), c.dimensions))
		}
		vec = v
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			requestsTotal.WithLabelValues(name, "canceled").Inc()
			return nil, ctxErr
		}

		now := time.Now()
		c.failed.Add(1)
		c.lastFailure.Store(&now)
		requestsTotal.WithLabelValues(name, "failure").Inc()
		c.logger.Warn("embedding unavailable",
			"provider", name, "attempts", attempts, "error", err)
		return nil, unavailable(name, attempts, err)
	}

	now := time.Now()
	c.completed.Add(1)
	c.lastSuccess.Store(&now)
	requestsTotal.WithLabelValues(name, "success").Inc()
	return vec, nil
}

// unavailable builds the terminal error. Causes that already carry a code
// are flattened into the message so the outer code is the one reported.
func unavailable(provider string, attempts int, cause error) error {
	fields := []tomeerr.Attr{tomeerr.FieldProvider(provider), tomeerr.Field("attempts", attempts)}
	msg := fmt.Sprintf("embedding via %s failed after %d attempt(s)", provider, attempts)
	if tomeerr.CodeOf(cause) != "" {
		return tomeerr.New(tomeerr.CodeEmbeddingUnavailable, fmt.Sprintf("%s: %v", msg, cause), fields...)
	}
	return tomeerr.Wrap(cause, tomeerr.CodeEmbeddingUnavailable, msg, fields...)
}

// Metrics returns a point-in-time snapshot of the client's bookkeeping.
func (c *Client) Metrics() health.Metrics {
	m := health.Metrics{
		Provider:     c.provider.Name(),
		InFlight:     c.inFlight.Load(),
		Completed:    c.completed.Load(),
		FailureCount: c.failed.Load(),
		RetryCount:   c.retries.Load(),
		Available:    true,
	}
	if last := c.lastFailure.Load(); last != nil {
		t := *last
		m.LastFailureAt = &t
		// Unavailable until a later call succeeds.
		ok := c.lastSuccess.Load()
		m.Available = ok != nil && ok.After(t)
	}
	return m
}
