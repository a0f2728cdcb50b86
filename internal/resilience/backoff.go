package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Default retry parameters.
const (
	defaultRetryBackoff    = 250 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second
)

// RetryConfig configures [Retry].
type RetryConfig struct {
	// Name labels log lines.
	Name string

	// Retries is the number of additional attempts after the first. Zero means
	// a single attempt.
	Retries int

	// Backoff is the wait before the first retry. Doubles each attempt up to
	// MaxBackoff. Defaults to 250ms if zero.
	Backoff time.Duration

	// MaxBackoff caps the wait between attempts. Defaults to 5s if zero.
	MaxBackoff time.Duration

	// Retryable reports whether err warrants another attempt. Nil retries
	// every error.
	Retryable func(error) bool

	// Logger receives per-attempt logs. Default: slog.Default().
	Logger *slog.Logger
}

// ErrPermanent marks an error that must not be retried. Wrap it with
// fmt.Errorf("...: %w", ErrPermanent) or use [Permanent].
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (p permanentError) Error() string   { return p.err.Error() }
func (p permanentError) Unwrap() []error { return []error{p.err, ErrPermanent} }

// Permanent wraps err so that [Retry] returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry calls fn until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. The wait between attempts grows
// exponentially. The last error from fn is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultRetryMaxBackoff
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var err error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying",
				"name", cfg.Name,
				"attempt", attempt,
				"max_retries", cfg.Retries,
				"backoff", backoff,
				"err", err,
			)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return errors.Join(err, ctx.Err())
			case <-t.C:
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}

	log.Warn("retries exhausted", "name", cfg.Name, "attempts", cfg.Retries+1, "err", err)
	return err
}
