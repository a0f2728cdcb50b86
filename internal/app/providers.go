package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/mockmate/internal/config"
	"github.com/MrWong99/mockmate/internal/feedback"
	"github.com/MrWong99/mockmate/internal/observe"
	"github.com/MrWong99/mockmate/internal/resilience"
	"github.com/MrWong99/mockmate/pkg/provider/llm"
)

// NewFeedbackGenerator builds the feedback generator described by cfg: an
// LLM analyzer over the configured model (with failover to the fallbacks),
// guarded by a circuit breaker and a deadline with placeholder fallback. An
// unset feedback.llm yields nil, meaning placeholder feedback.
func NewFeedbackGenerator(cfg config.FeedbackConfig, reg *config.Registry, m *observe.Metrics, log *slog.Logger) (feedback.Generator, error) {
	if cfg.LLM.Name == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = observe.DefaultMetrics()
	}

	primary, err := reg.CreateLLM(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("app: feedback llm %q: %w", cfg.LLM.Name, err)
	}
	var p llm.Provider = &meteredLLM{p: primary, name: cfg.LLM.Name, m: m}
	name := cfg.LLM.Name

	if len(cfg.Fallbacks) > 0 {
		group := resilience.NewLLMFallback(p, cfg.LLM.Name, resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: cfg.MaxFailures},
			Logger:         log,
		})
		for i, entry := range cfg.Fallbacks {
			fp, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, fmt.Errorf("app: feedback fallback %d %q: %w", i, entry.Name, err)
			}
			group.AddFallback(entry.Name, &meteredLLM{p: fp, name: entry.Name, m: m})
		}
		p = group
		log.Info("feedback analysis failover configured", "providers", group.Names())
	}

	analyzer := feedback.NewAnalyzer(p, name)

	// The guard must give up before the session's own feedback deadline so
	// its placeholder is the one returned.
	timeout := cfg.Timeout * 3 / 4
	return feedback.NewGuarded(analyzer, feedback.GuardedConfig{
		Timeout: timeout,
		Breaker: resilience.CircuitBreakerConfig{
			Name:        "feedback/" + name,
			MaxFailures: cfg.MaxFailures,
			OnStateChange: func(name string, _, to resilience.State) {
				if to == resilience.StateOpen {
					log.Warn("feedback analysis suspended, using placeholder feedback", "breaker", name)
				}
			},
		},
		Logger: log,
	}), nil
}

// meteredLLM counts completion requests per provider and outcome.
type meteredLLM struct {
	p    llm.Provider
	name string
	m    *observe.Metrics
}

func (l *meteredLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := l.p.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	l.m.RecordProviderRequest(ctx, l.name, status)
	return resp, err
}
