// Package retry provides backoff policies for transient failures,
// used when establishing the store connection at startup.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/retentiond/internal/config"
	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // maximum retry attempts after the first failure
}

// DefaultPolicy returns a sensible default policy (linear, 1s initial, 30s cap, 2 retries).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// FromConfig builds a policy from raw config fields; zero/invalid values fall back to defaults.
func FromConfig(rc config.RetryConfig) Policy {
	p := DefaultPolicy()
	if rc.MaxRetries > 0 {
		p.MaxRetries = rc.MaxRetries
	}
	if d, err := time.ParseDuration(rc.Initial); err == nil && d > 0 {
		p.Initial = d
	}
	if d, err := time.ParseDuration(rc.Max); err == nil && d > 0 {
		p.Max = d
	}
	if mode := config.NormalizeRetryBackoff(rc.Backoff); mode != "" {
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Do runs op, retrying per the policy until it succeeds, retries are
// exhausted, or the context is cancelled. An error classified as
// non-retryable stops the loop immediately; unclassified errors are
// treated as transient and retried.
func (p Policy) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		var re *reterrors.RetentionError
		if stderrors.As(err, &re) && !reterrors.IsRetryable(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return fmt.Errorf("giving up after %d retries: %w", p.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt + 1)):
		}
	}
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
