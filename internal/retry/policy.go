// Package retry runs operations against flaky remotes (git, NATS) with a
// configurable backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/moklog/internal/config"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
)

// Policy describes how often and how patiently an operation is retried.
// The zero value never waits and never retries.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first one
}

// DefaultPolicy waits 1s, 2s between two retries, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffLinear,
		Initial:    time.Second,
		Max:        30 * time.Second,
		MaxRetries: 2,
	}
}

// NewPolicy overlays the given values on DefaultPolicy. Non-positive
// durations, negative retry counts and unknown modes keep the default. An
// initial delay above the cap is clamped to the cap.
func NewPolicy(mode config.RetryBackoffMode, initial, ceiling time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if initial > 0 {
		p.Initial = initial
	}
	if ceiling > 0 {
		p.Max = ceiling
	}
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	p.Initial = min(p.Initial, p.Max)
	return p
}

// FromConfig builds a policy from a retry config section.
func FromConfig(rc config.RetryConfig) Policy {
	initial, ceiling := rc.Delays()
	return NewPolicy(rc.Mode, initial, ceiling, rc.MaxRetries)
}

// Delay is the wait before retry n (n starts at 1).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial
		for i := 1; i < n && d < p.Max; i++ {
			d *= 2
		}
	default:
		d = p.Initial * time.Duration(n)
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Validate reports a policy that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return errors.ValidationError("retry initial delay must be positive").Build()
	case p.Max <= 0:
		return errors.ValidationError("retry max delay must be positive").Build()
	case p.MaxRetries < 0:
		return errors.ValidationError("retry count cannot be negative").
			WithContext("max_retries", p.MaxRetries).Build()
	}
	return nil
}

// Do calls fn until it returns nil or the retries run out. A classified
// error that forbids retrying ends the loop at once, as does ctx ending
// during a wait.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for n := 1; err != nil && n <= p.MaxRetries; n++ {
		if c, ok := errors.AsClassified(err); ok && !c.CanRetry() {
			return err
		}
		if werr := wait(ctx, p.Delay(n)); werr != nil {
			return fmt.Errorf("gave up after %d attempts: %w", n, err)
		}
		err = fn(ctx)
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
