// Package app wires the mockmate subsystems into a running application.
//
// The App struct owns the full lifecycle: New validates the configuration
// and prepares shared resources, Run executes one interview session next to
// the health and metrics server, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithMicrophone, WithConsole, etc.). When an option is not provided, the
// session runs without that device.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mockmate/internal/config"
	"github.com/MrWong99/mockmate/internal/feedback"
	"github.com/MrWong99/mockmate/internal/health"
	"github.com/MrWong99/mockmate/internal/interview"
	"github.com/MrWong99/mockmate/internal/observe"
	"github.com/MrWong99/mockmate/pkg/audio/capture"
	"github.com/MrWong99/mockmate/pkg/audio/graph"
	"github.com/MrWong99/mockmate/pkg/live"
)

// shutdownTimeout bounds the HTTP server drain.
const shutdownTimeout = 5 * time.Second

// Providers holds the external services a session talks to. Populated by
// main.go via the config registry.
type Providers struct {
	// Live opens the real-time interviewer connection. Required.
	Live live.Dialer

	// Feedback analyses the finished interview. Nil means placeholder
	// feedback.
	Feedback feedback.Generator
}

// SpeakerFunc opens an output device that pulls audio from r.
type SpeakerFunc func(r *graph.Graph, sampleRate, channels int) (io.Closer, error)

// App owns all subsystem lifetimes for one interview.
type App struct {
	cfg       *config.Config
	providers *Providers

	mic         capture.Device
	openSpeaker SpeakerFunc
	store       *feedback.FileStore
	metrics     *observe.Metrics
	metricsH    http.Handler
	log         *slog.Logger

	in  io.Reader
	out io.Writer

	ready   health.Gate
	session atomic.Pointer[interview.Session]
	addr    atomic.Pointer[string]

	mu     sync.Mutex
	result *feedback.Feedback

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMicrophone sets the capture device.
func WithMicrophone(d capture.Device) Option {
	return func(a *App) { a.mic = d }
}

// WithSpeaker sets the function that opens the output device.
func WithSpeaker(f SpeakerFunc) Option {
	return func(a *App) { a.openSpeaker = f }
}

// WithConsole sets the command input and the user-facing output.
func WithConsole(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithFeedbackStore injects a store instead of creating one from config.
func WithFeedbackStore(s *feedback.FileStore) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App. The providers struct comes from main.go (populated via
// the config registry).
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil || providers.Live == nil {
		return nil, errors.New("app: a live provider is required")
	}
	if strings.TrimSpace(cfg.Interview.Role) == "" {
		return nil, errors.New("app: interview.role is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		in:        strings.NewReader(""),
		out:       io.Discard,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.store == nil && cfg.Feedback.StorePath != "" {
		a.store = feedback.NewFileStore(cfg.Feedback.StorePath)
	}
	a.ready.Set(false, "session not started")
	return a, nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves health and metrics (when server.listen_addr is set) and runs one
// interview session until the user ends it, the session fails or ctx is
// cancelled. The session error, if any, is returned.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Server.ListenAddr != "" {
		ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
		}
		addr := ln.Addr().String()
		a.addr.Store(&addr)
		srv := &http.Server{
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("serving health and metrics", "addr", addr)
			var err error
			if tls := a.cfg.Server.TLS; tls != nil {
				err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			} else {
				err = srv.Serve(ln)
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		// The server goroutines stop once the session is over.
		defer cancel()
		return a.runSession(gctx)
	})

	return g.Wait()
}

// Handler returns the side server's HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	checks := []health.Checker{a.ready.Checker("session")}
	if a.store != nil {
		checks = append(checks, health.Checker{Name: "feedback_store", Check: func(context.Context) error {
			return a.store.Writable()
		}})
	}
	health.New(checks...).Register(mux)
	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}
	mux.HandleFunc("GET /session", a.serveSnapshot)
	return observe.Middleware(a.metrics, a.log)(mux)
}

// Addr returns the address the side server listens on, once Run has bound it.
func (a *App) Addr() string {
	if p := a.addr.Load(); p != nil {
		return *p
	}
	return ""
}

// Feedback returns the feedback of the finished session.
func (a *App) Feedback() (feedback.Feedback, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return feedback.Feedback{}, false
	}
	return *a.result, true
}

func (a *App) runSession(ctx context.Context) error {
	g := graph.New(a.cfg.Audio.PlaybackRate, 1)

	opts := []interview.Option{
		interview.WithMetrics(a.metrics),
		interview.WithLogger(a.log),
	}
	if a.providers.Feedback != nil {
		opts = append(opts, interview.WithFeedback(a.providers.Feedback))
	}
	if a.mic != nil {
		opts = append(opts, interview.WithMicrophone(a.mic))
	}
	if a.openSpeaker != nil {
		spk, err := a.openSpeaker(g, a.cfg.Audio.PlaybackRate, 1)
		if err != nil {
			_ = g.Close()
			return fmt.Errorf("app: open speaker: %w", err)
		}
		opts = append(opts, interview.WithSpeaker(spk))
	}

	sess, err := interview.New(a.sessionConfig(), a.providers.Live, g, opts...)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.session.Store(sess)
	a.ready.Set(false, "connecting")

	a.printf("Connecting to the interviewer for the %s role...\n", a.cfg.Interview.Role)
	if err := sess.Start(ctx); err != nil {
		a.finish(sess)
		if ctx.Err() != nil {
			return nil
		}
		if serr := sess.Err(); serr != nil {
			err = serr
		} else if errors.Is(err, interview.ErrEnded) {
			return nil
		}
		if msg := capture.UserMessage(err); msg != "" {
			a.printf("%s\n", msg)
		} else {
			a.printf("Could not start the interview: %v\n", err)
		}
		return err
	}
	a.ready.Set(true, "")
	a.printf("Connected. Press Enter to start or stop recording, \"s\" for status, \"q\" to end the interview.\n")

	cmds := readCommands(ctx, a.in)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sess.Done():
			break loop
		case line, ok := <-cmds:
			if !ok {
				// Input closed; keep running until the session or ctx ends.
				cmds = nil
				continue
			}
			if a.command(ctx, sess, line) {
				break loop
			}
		}
	}

	a.ready.Set(false, "session closed")
	a.finish(sess)
	if err := sess.Err(); err != nil {
		a.printf("The interview ended unexpectedly: %v\n", err)
		return err
	}
	return nil
}

// command handles one console line and reports whether the session should end.
func (a *App) command(ctx context.Context, sess *interview.Session, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "r", "rec", "record":
		rec, err := sess.ToggleRecording(ctx)
		if err != nil {
			a.printf("Cannot toggle recording: %v\n", err)
			return false
		}
		if rec {
			a.printf("Recording. Speak to answer.\n")
		} else {
			a.printf("Recording paused.\n")
		}
	case "s", "status":
		snap := sess.Snapshot()
		a.printf("state=%s connected=%t recording=%t speaking=%t messages=%d elapsed=%s\n",
			snap.State, snap.Connected, snap.Recording, snap.Speaking, snap.Messages, snap.Elapsed.Round(time.Second))
	case "q", "quit", "end", "exit":
		return true
	default:
		a.printf("Unknown command %q.\n", line)
	}
	return false
}

// finish ends sess, persists its feedback and prints the summary.
func (a *App) finish(sess *interview.Session) {
	fb := sess.End()
	a.mu.Lock()
	a.result = &fb
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Save(fb); err != nil {
			a.log.Error("failed to save feedback", "path", a.store.Path(), "err", err)
		} else {
			a.log.Info("feedback saved", "path", a.store.Path(), "session_id", fb.SessionID)
		}
	}
	a.printFeedback(fb)
}

func (a *App) printFeedback(fb feedback.Feedback) {
	a.printf("\nInterview feedback (%s, %s)\n", fb.Role, fb.Duration().Round(time.Second))
	a.printf("Rating: %d/%d\n%s\n", fb.Rating, feedback.MaxRating, fb.Summary)
	if len(fb.Strengths) > 0 {
		a.printf("Strengths:\n")
		for _, s := range fb.Strengths {
			a.printf("  + %s\n", s)
		}
	}
	if len(fb.Improvements) > 0 {
		a.printf("To improve:\n")
		for _, s := range fb.Improvements {
			a.printf("  - %s\n", s)
		}
	}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) sessionConfig() interview.Config {
	c := a.cfg
	return interview.Config{
		Role: c.Interview.Role,
		Live: live.Config{
			Model:             c.Live.Model,
			Voice:             c.Live.Voice,
			Language:          c.Live.Language,
			ResponseModality:  c.Live.ResponseModality,
			StartSensitivity:  string(c.Live.StartSensitivity),
			EndSensitivity:    string(c.Live.EndSensitivity),
			PrefixPaddingMs:   c.Live.PrefixPaddingMs,
			SilenceDurationMs: c.Live.SilenceDurationMs,
			SystemInstruction: c.Live.SystemInstruction,
			Transcribe:        config.Enabled(c.Live.Transcribe),
		},
		Capture: capture.Constraints{
			SampleRate:       c.Audio.CaptureRate,
			Channels:         1,
			BlockSize:        c.Audio.BlockSize,
			EchoCancellation: config.Enabled(c.Audio.EchoCancellation),
			NoiseSuppression: config.Enabled(c.Audio.NoiseSuppression),
			AutoGainControl:  config.Enabled(c.Audio.AutoGainControl),
			DeviceID:         c.Audio.InputDevice,
		},
		BootstrapTemplate: c.Interview.BootstrapTemplate,
		BootstrapDelay:    c.Interview.BootstrapDelay,
		HandshakeTimeout:  c.Live.HandshakeTimeout,
		ConnectRetries:    c.Live.ConnectRetries,
		RetryBackoff:      c.Live.RetryBackoff,
		FeedbackTimeout:   c.Feedback.Timeout,
		PlaybackRate:      c.Audio.PlaybackRate,
		BenignErrors:      c.Interview.BenignErrors,
		SendQueue:         c.Interview.SendQueue,
	}
}

// readCommands delivers input lines until r is exhausted or ctx is done.
func readCommands(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case ch <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends a running session and runs the registered closers in order.
// It respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		if sess := a.session.Load(); sess != nil {
			done := make(chan struct{})
			go func() {
				sess.End()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				shutdownErr = ctx.Err()
				return
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

// AddCloser registers fn to run during Shutdown.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}
