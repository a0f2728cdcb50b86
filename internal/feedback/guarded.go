package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/mockmate/internal/resilience"
)

// DefaultTimeout bounds a single guarded generation.
const DefaultTimeout = 20 * time.Second

// Guarded runs a primary generator behind a circuit breaker and a deadline,
// falling back to another generator (normally [Placeholder]) on any failure.
// Generate on a Guarded never returns an error unless the fallback does.
type Guarded struct {
	primary  Generator
	fallback Generator
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	log      *slog.Logger
	observe  func(ctx context.Context, generator string, d time.Duration)
}

var _ Generator = (*Guarded)(nil)

// GuardedConfig configures [NewGuarded].
type GuardedConfig struct {
	// Timeout bounds the primary call. Defaults to [DefaultTimeout].
	Timeout time.Duration

	// Fallback defaults to [Placeholder].
	Fallback Generator

	// Breaker tunes the circuit breaker wrapped around the primary.
	Breaker resilience.CircuitBreakerConfig

	// Observe, if set, is called with the generator that produced the result
	// and the time spent.
	Observe func(ctx context.Context, generator string, d time.Duration)

	Logger *slog.Logger
}

// NewGuarded wraps primary.
func NewGuarded(primary Generator, cfg GuardedConfig) *Guarded {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Fallback == nil {
		cfg.Fallback = Placeholder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "feedback"
	}
	if cfg.Breaker.Logger == nil {
		cfg.Breaker.Logger = cfg.Logger
	}
	return &Guarded{
		primary:  primary,
		fallback: cfg.Fallback,
		breaker:  resilience.NewCircuitBreaker(cfg.Breaker),
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
		observe:  cfg.Observe,
	}
}

// Breaker exposes the circuit breaker state for health reporting.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.breaker }

// Generate tries the primary generator and falls back on error, panic,
// deadline or an open breaker.
func (g *Guarded) Generate(ctx context.Context, t Transcript) (Feedback, error) {
	start := time.Now()

	var fb Feedback
	err := g.breaker.Execute(func() error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		var err error
		fb, err = g.callPrimary(cctx, t)
		return err
	})
	if err == nil {
		g.record(ctx, fb.GeneratedBy, start)
		return fb, nil
	}

	g.log.Warn("feedback analysis failed, using fallback", "err", err)
	fb, ferr := g.fallback.Generate(context.WithoutCancel(ctx), t)
	if ferr != nil {
		return Feedback{}, fmt.Errorf("feedback: fallback: %w", ferr)
	}
	g.record(ctx, fb.GeneratedBy, start)
	return fb, nil
}

func (g *Guarded) callPrimary(ctx context.Context, t Transcript) (fb Feedback, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feedback: generator panic: %v", r)
		}
	}()
	return g.primary.Generate(ctx, t)
}

func (g *Guarded) record(ctx context.Context, generator string, start time.Time) {
	if g.observe != nil {
		g.observe(ctx, generator, time.Since(start))
	}
}
