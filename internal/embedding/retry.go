// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package embedding

import (
	"context"
	"math/rand/v2"
	"time"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
)

// Default retry budget for embedding calls.
const (
	DefaultMaxAttempts = 6
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 20 * time.Second
)

// RetryPolicy is exponential backoff with jitter. Jitter and Sleep are
// injectable so tests run without waiting.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Jitter maps the computed backoff to the delay actually slept.
	// Nil uses equal jitter: half fixed, half random.
	Jitter func(d time.Duration) time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the 6-attempt, 1s..20s policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Validate checks the policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return tomeerr.Errorf(tomeerr.CodeEmbeddingRequestInvalid,
			"retry max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return tomeerr.New(tomeerr.CodeEmbeddingRequestInvalid, "retry delays must not be negative")
	}
	if p.MaxDelay < p.BaseDelay {
		return tomeerr.Errorf(tomeerr.CodeEmbeddingRequestInvalid,
			"retry max_delay %s is below base_delay %s", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

// Backoff returns the un-jittered delay before the given retry
// (retry 1 follows the first failed attempt).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	return min(d, p.MaxDelay)
}

// Do calls op until it succeeds, returns a Permanent error, the attempt
// budget is spent, or ctx is done. It returns the number of attempts made
// and the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) (int, error) {
	jitter := p.Jitter
	if jitter == nil {
		jitter = equalJitter
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if IsPermanent(lastErr) || attempt == p.MaxAttempts {
			return attempt, lastErr
		}

		// Jitter never shortens a wait below the base delay.
		if err := sleep(ctx, max(jitter(p.Backoff(attempt)), p.BaseDelay)); err != nil {
			return attempt, err
		}
	}
	return p.MaxAttempts, lastErr
}

func equalJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + rand.N(d-half+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
