package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] produced a
// result. The returned error also wraps each member's own error.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for every member's breaker. Its Name is
	// replaced by the member name.
	CircuitBreaker CircuitBreakerConfig

	Logger *slog.Logger
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// MemberStatus is a point-in-time view of one group member.
type MemberStatus struct {
	Name  string
	State State
}

// FallbackGroup holds interchangeable backends in preference order, each
// behind its own circuit breaker. Members are added during setup; after
// that the group is safe for concurrent use.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group whose preferred member is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CircuitBreaker.Logger == nil {
		cfg.CircuitBreaker.Logger = cfg.Logger
	}
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a member tried after all existing ones.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	bc := fg.cfg.CircuitBreaker
	bc.Name = name
	fg.members = append(fg.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(bc)})
}

// Names returns member names in preference order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.members))
	for i, m := range fg.members {
		names[i] = m.name
	}
	return names
}

// Status reports every member's breaker state in preference order.
func (fg *FallbackGroup[T]) Status() []MemberStatus {
	out := make([]MemberStatus, len(fg.members))
	for i, m := range fg.members {
		out[i] = MemberStatus{Name: m.name, State: m.breaker.State()}
	}
	return out
}

// Execute calls fn with each member in turn until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := Call(ctx, fg, func(ctx context.Context, v T) (struct{}, error) { return struct{}{}, fn(ctx, v) })
	return err
}

// Call calls fn with each member in turn and returns the first successful
// result. Members whose breaker is open are skipped. Once ctx is done no
// further member is tried, so a caller deadline is never charged to the
// remaining members' breakers.
func Call[T, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var errs []error
	for i := range fg.members {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		m := &fg.members[i]
		var res R
		err := m.breaker.Execute(func() error {
			var err error
			res, err = fn(ctx, m.value)
			return err
		})
		if err == nil {
			if i > 0 {
				fg.cfg.Logger.Info("served by fallback provider", "provider", m.name)
			}
			return res, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			fg.cfg.Logger.Debug("skipping provider with open circuit", "provider", m.name)
		} else {
			fg.cfg.Logger.Warn("provider failed", "provider", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	var zero R
	return zero, errors.Join(append([]error{ErrAllFailed}, errs...)...)
}
