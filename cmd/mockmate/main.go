// Command mockmate runs a real-time voice mock interview against a live
// speech model and prints interview feedback when the session ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MrWong99/mockmate/internal/app"
	"github.com/MrWong99/mockmate/internal/config"
	"github.com/MrWong99/mockmate/internal/observe"
	"github.com/MrWong99/mockmate/pkg/audio/device"
	"github.com/MrWong99/mockmate/pkg/audio/graph"
	"github.com/MrWong99/mockmate/pkg/live"
	"github.com/MrWong99/mockmate/pkg/live/gemini"
	"github.com/MrWong99/mockmate/pkg/provider/llm"
	"github.com/MrWong99/mockmate/pkg/provider/llm/anyllm"
	"github.com/MrWong99/mockmate/pkg/provider/llm/openai"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "mockmate.yaml", "path to the YAML configuration file")
	role := flag.String("role", "", "job role to interview for (overrides interview.role)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mockmate: %v\n", err)
		return 1
	}
	if *role != "" {
		cfg.Interview.Role = *role
	}
	if cfg.Live.APIKey == "" {
		cfg.Live.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg, metrics, logger)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(os.Stderr, cfg)

	application, err := app.New(cfg, providers,
		app.WithMicrophone(device.NewMicrophone(logger)),
		app.WithSpeaker(func(g *graph.Graph, rate, channels int) (io.Closer, error) {
			return device.OpenSpeaker(g, rate, channels, cfg.Audio.OutputDevice, logger)
		}),
		app.WithConsole(os.Stdin, os.Stdout),
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	application.AddCloser(func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tel.Shutdown(sctx)
	})

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("interview session failed", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	return 0
}

// loadConfig reads path. A missing file is not an error: every setting has a
// default except the role and API key, which can come from flags and the
// environment.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.LoadFromReader(strings.NewReader(""))
	}
	return cfg, err
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Live ──────────────────────────────────────────────────────────────────
	reg.RegisterLive("gemini-live", func(cfg config.LiveConfig) (live.Dialer, error) {
		if cfg.APIKey == "" {
			return nil, errors.New("gemini-live: api_key is required (or set GEMINI_API_KEY)")
		}
		opts := []gemini.Option{
			gemini.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		return gemini.New(cfg.APIKey, opts...), nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// Every any-llm-go backend takes an optional key and base URL; local ones
	// such as ollama simply ignore the key.
	for _, providerName := range anyllm.Supported() {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// Any server speaking the OpenAI chat completions API.
	reg.RegisterLLM("openai-compatible", func(entry config.ProviderEntry) (llm.Provider, error) {
		key := entry.APIKey
		if key == "" {
			// Local servers ignore the key but the SDK requires one.
			key = "unused"
		}
		return openai.New(key, entry.Model,
			openai.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
			openai.WithBaseURL(entry.BaseURL),
			openai.WithOrganization(optString(entry.Options, "organization")),
			openai.WithMaxRetries(1),
		)
	})
}

// buildProviders instantiates the live dialer and the optional feedback
// generator named in cfg.
func buildProviders(cfg *config.Config, reg *config.Registry, m *observe.Metrics, log *slog.Logger) (*app.Providers, error) {
	dialer, err := reg.CreateLive(cfg.Live)
	if err != nil {
		return nil, fmt.Errorf("create live provider %q: %w", cfg.Live.Name, err)
	}
	slog.Info("provider created", "kind", "live", "name", cfg.Live.Name)

	gen, err := app.NewFeedbackGenerator(cfg.Feedback, reg, m, log)
	if err != nil {
		return nil, err
	}
	if gen != nil {
		slog.Info("provider created", "kind", "feedback", "name", cfg.Feedback.LLM.Name)
	}
	return &app.Providers{Live: dialer, Feedback: gen}, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        mockmate - interview setup     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Role", cfg.Interview.Role)
	printRow(w, "Live", providerLabel(cfg.Live.Name, cfg.Live.Model))
	printRow(w, "Voice", cfg.Live.Voice)
	printRow(w, "Feedback", providerLabel(cfg.Feedback.LLM.Name, cfg.Feedback.LLM.Model))
	printRow(w, "Capture", fmt.Sprintf("%d Hz", cfg.Audio.CaptureRate))
	printRow(w, "Playback", fmt.Sprintf("%d Hz", cfg.Audio.PlaybackRate))
	if cfg.Server.ListenAddr != "" {
		printRow(w, "Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	if name == "" {
		return "(placeholder)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printRow(w io.Writer, key, value string) {
	if value == "" {
		value = "(default)"
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s   : %-19s ║\n", key, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map[string]any.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
