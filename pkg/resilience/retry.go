package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Outcome classifies one attempt of a retried operation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// BackoffFunc maps a zero-based attempt index to the delay before the next
// attempt. It must be pure.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits base*(attempt+1): base after the first failure,
// 2*base after the second, and so on.
func LinearBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt+1)
	}
}

// Policy bounds a retried operation: one initial attempt plus MaxRetries.
type Policy struct {
	Name       string
	MaxRetries int
	Backoff    BackoffFunc
	// OnAttempt, when set, observes every finished attempt.
	OnAttempt func(attempt int, outcome Outcome, err error)
}

// AttemptFunc runs attempt number attempt (zero-based) and classifies it.
type AttemptFunc func(ctx context.Context, attempt int) (Outcome, error)

// Do drives fn through the bounded attempt state machine:
//
//	attempt k --success--> done
//	attempt k --terminal--> failed
//	attempt k --retryable--> wait Backoff(k) --> attempt k+1   (k < MaxRetries)
//	attempt k --retryable--> failed                            (k == MaxRetries)
//
// It returns the number of attempts made and the last error.
func Do(ctx context.Context, policy Policy, fn AttemptFunc) (int, error) {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	logger := slog.Default().With("component", "retry", "operation", policy.Name)
	maxAttempts := policy.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		outcome, err := fn(ctx, attempt)
		if policy.OnAttempt != nil {
			policy.OnAttempt(attempt, outcome, err)
		}
		switch outcome {
		case OutcomeSuccess:
			if attempt > 0 {
				logger.Info("succeeded after retry", "attempt", attempt+1)
			}
			return attempt + 1, nil
		case OutcomeTerminal:
			return attempt + 1, err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		var delay time.Duration
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		logger.Warn("operation failed, retrying",
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"error", err,
			"next_delay", delay,
		)
		if err := wait(ctx, delay); err != nil {
			return attempt + 1, fmt.Errorf("retry aborted during backoff: %w", errors.Join(lastErr, err))
		}
	}
	return maxAttempts, lastErr
}

func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Retry runs fn with jittered exponential backoff, treating every error as
// retryable. Used for startup connections.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	defaults := defaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = defaults.JitterFraction
	}
	policy := Policy{
		Name:       name,
		MaxRetries: cfg.MaxAttempts - 1,
		Backoff: func(attempt int) time.Duration {
			return computeDelay(attempt+1, cfg)
		},
	}
	attempts, err := Do(ctx, policy, func(ctx context.Context, attempt int) (Outcome, error) {
		if err := fn(); err != nil {
			return OutcomeRetryable, err
		}
		return OutcomeSuccess, nil
	})
	if err != nil {
		return fmt.Errorf("all %d attempts failed for %s: %w", attempts, name, err)
	}
	return nil
}

func computeDelay(attempt int, cfg RetryConfig) time.Duration {
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	jitter := backoff * cfg.JitterFraction * (2*rand.Float64() - 1)
	backoff += jitter
	if backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	if backoff < 0 {
		backoff = float64(cfg.InitialDelay)
	}
	return time.Duration(backoff)
}
