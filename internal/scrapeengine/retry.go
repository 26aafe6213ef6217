// Package scrapeengine is the multi-stage scraping engine: it
// orchestrates a plugin's search under bounded retry, then dedups,
// validates, and promotes alternate links over dead primaries.
package scrapeengine

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig makes up to 3 attempts on transient transport/5xx
// failures with a 2s base backoff; 4xx responses are treated as terminal.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryWithBackoff retries fn on transient errors with exponential
// backoff plus jitter. A TerminalError short-circuits retries immediately.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if isTerminal(err) || !isTransientError(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		wait := applyJitter(delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// TerminalError wraps a 4xx-equivalent failure that must not be retried.
type TerminalError struct{ Err error }

func (e *TerminalError) Error() string { return e.Err.Error() }
func (e *TerminalError) Unwrap() error { return e.Err }

func isTerminal(err error) bool {
	var terminal *TerminalError
	return errors.As(err, &terminal)
}

func applyJitter(d time.Duration) time.Duration {
	jitter := 0.25
	factor := 1 - jitter + rand.Float64()*2*jitter
	return time.Duration(float64(d) * factor)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"timeout", "deadline exceeded", "connection reset", "connection refused", "tls", "eof", "http 5"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
