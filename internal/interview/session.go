// Package interview orchestrates one voice mock-interview session.
//
// A [Session] owns the microphone capture pipeline, the playback scheduler
// and the live model connection for its whole lifetime. It moves through
// idle → connecting → open → closed, dispatches inbound model messages into
// playback, streams recorded microphone blocks to the model, and on [Session.End]
// tears everything down before producing a feedback record.
//
// Two producers run concurrently with the caller: the capture device callback
// and the live connection's receive goroutine. Neither may assume any
// ordering relative to the other; all shared state is guarded by the session
// mutex or held in atomics.
package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/mockmate/internal/feedback"
	"github.com/MrWong99/mockmate/internal/observe"
	"github.com/MrWong99/mockmate/internal/resilience"
	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/audio/capture"
	"github.com/MrWong99/mockmate/pkg/audio/graph"
	"github.com/MrWong99/mockmate/pkg/audio/playback"
	"github.com/MrWong99/mockmate/pkg/live"
)

// Sentinel errors.
var (
	ErrAlreadyStarted   = errors.New("interview: session already started")
	ErrNotConnected     = errors.New("interview: session not connected")
	ErrEnded            = errors.New("interview: session ended")
	ErrHandshakeTimeout = errors.New("interview: handshake timed out")
	ErrConnect          = errors.New("interview: could not connect to the interviewer")
	ErrUnexpectedClose  = errors.New("session terminated unexpectedly")
	ErrTransport        = errors.New("interview: transport error")
	ErrQueueFull        = errors.New("interview: outbound audio queue full")
	ErrNoMicrophone     = errors.New("interview: no microphone stream")
)

// Default tuning values.
const (
	DefaultBootstrapDelay   = 500 * time.Millisecond
	DefaultHandshakeTimeout = 15 * time.Second
	DefaultConnectRetries   = 2
	DefaultRetryBackoff     = 500 * time.Millisecond
	DefaultFeedbackTimeout  = 20 * time.Second
	DefaultSendQueue        = 64
)

// DefaultBenignErrors lists substrings of transport errors and log lines that
// are expected during normal operation and never shown to the user.
var DefaultBenignErrors = []string{
	"non-text parts",
	"use of closed network connection",
	"StatusGoingAway",
}

// Config is the per-session configuration. It is fixed once the session is
// created.
type Config struct {
	// Role is the target job role named in the bootstrap instruction.
	Role string

	// Live is passed to the dialer unchanged.
	Live live.Config

	// Capture constrains the microphone stream.
	Capture capture.Constraints

	// BootstrapTemplate overrides [DefaultBootstrapTemplate].
	BootstrapTemplate string

	// BootstrapDelay is the wait between open and the bootstrap turn. A
	// negative value disables the bootstrap turn.
	BootstrapDelay time.Duration

	// HandshakeTimeout bounds each connection attempt, from dial until the
	// provider accepts the session setup.
	HandshakeTimeout time.Duration

	// ConnectRetries is the number of extra attempts after a failed
	// handshake. A negative value disables retries.
	ConnectRetries int

	// RetryBackoff is the wait before the first retry; it doubles per retry.
	RetryBackoff time.Duration

	// FeedbackTimeout bounds feedback generation in [Session.End].
	FeedbackTimeout time.Duration

	// PlaybackRate is assumed for inbound audio that carries no rate.
	PlaybackRate int

	// BenignErrors overrides [DefaultBenignErrors].
	BenignErrors []string

	// SendQueue is the capacity of the outbound audio queue.
	SendQueue int
}

func (c *Config) applyDefaults() {
	if c.BootstrapDelay == 0 {
		c.BootstrapDelay = DefaultBootstrapDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.ConnectRetries == 0 {
		c.ConnectRetries = DefaultConnectRetries
	}
	if c.ConnectRetries < 0 {
		c.ConnectRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.FeedbackTimeout <= 0 {
		c.FeedbackTimeout = DefaultFeedbackTimeout
	}
	if c.PlaybackRate <= 0 {
		c.PlaybackRate = audio.DefaultPlaybackRate
	}
	if c.BenignErrors == nil {
		c.BenignErrors = DefaultBenignErrors
	}
	if c.SendQueue <= 0 {
		c.SendQueue = DefaultSendQueue
	}
	if c.Capture.SampleRate <= 0 {
		c.Capture = capture.DefaultConstraints()
	}
}

// Option configures a [Session].
type Option func(*Session)

// WithMicrophone enables audio capture from d. Without it the session only
// plays model audio.
func WithMicrophone(d capture.Device) Option {
	return func(s *Session) { s.mic = d }
}

// WithSpeaker registers the output device so it is closed on teardown.
func WithSpeaker(c io.Closer) Option {
	return func(s *Session) { s.speaker = c }
}

// WithFeedback sets the generator used by [Session.End]. The default is
// [feedback.Placeholder].
func WithFeedback(g feedback.Generator) Option {
	return func(s *Session) { s.gen = g }
}

// WithMetrics sets the metrics sink. The default is [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.baseLog = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithID sets the session ID. The default is a random UUID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID            string
	State         State
	Connected     bool
	Recording     bool
	Capturing     bool
	Speaking      bool
	NextStartTime float64
	ActiveSources int
	Messages      int
	TurnMessages  int
	Elapsed       time.Duration
}

// Session is one interview. Create it with [New].
type Session struct {
	cfg     Config
	id      string
	dialer  live.Dialer
	graph   *graph.Graph
	sched   *playback.Scheduler
	mic     capture.Device
	speaker io.Closer
	gen     feedback.Generator
	metrics *observe.Metrics
	baseLog *slog.Logger
	log     *slog.Logger
	now     func() time.Time

	rel    *releaser
	ctx    context.Context
	cancel context.CancelFunc

	// recording is read by the capture callback on every block.
	recording atomic.Bool
	connected atomic.Bool
	tearing   atomic.Bool

	out  chan live.MediaMessage
	done chan struct{}

	mu        sync.Mutex
	state     State
	conn      live.Conn
	pipeline  *capture.Pipeline
	messages  []*live.Message
	turn      []*live.Message
	startedAt time.Time
	endedAt   time.Time
	err       error
	reason    string
	bootstrap *time.Timer

	endOnce   sync.Once
	endResult feedback.Feedback
}

// New creates an idle session that will play model audio through g.
func New(cfg Config, dialer live.Dialer, g *graph.Graph, opts ...Option) (*Session, error) {
	if dialer == nil {
		return nil, errors.New("interview: dialer must not be nil")
	}
	if g == nil {
		return nil, errors.New("interview: graph must not be nil")
	}
	if strings.TrimSpace(cfg.Role) == "" {
		return nil, errors.New("interview: role must not be empty")
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:     cfg,
		dialer:  dialer,
		graph:   g,
		gen:     feedback.Placeholder{},
		baseLog: slog.Default(),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.log = s.baseLog.With("session_id", s.id, "role", cfg.Role)
	s.out = make(chan live.MediaMessage, cfg.SendQueue)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.rel = newReleaser(s.log)

	s.sched = playback.New(g,
		playback.WithLogger(s.log),
		playback.WithSpeakingChange(func(speaking bool) {
			s.log.Debug("speaking changed", "speaking", speaking)
		}),
		playback.WithActiveChange(func(delta int) {
			s.metrics.ActiveSources.Add(context.Background(), int64(delta))
		}),
	)

	s.rel.add("audio graph", g.Close)
	if s.speaker != nil {
		s.rel.add("speaker", s.speaker.Close)
	}
	s.rel.add("playback", func() error {
		s.sched.Interrupt()
		return nil
	})
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that closed the session, or nil for a session that
// is still running or was ended by the user.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scheduler exposes the playback scheduler.
func (s *Session) Scheduler() *playback.Scheduler { return s.sched }

// Start acquires the microphone (if configured) and opens the live
// connection. It blocks until the session is open, the handshake fails, ctx
// is cancelled or [Session.End] is called. On failure the session is closed
// and the error is also reported by [Session.Err].
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
	case StateClosed:
		s.mu.Unlock()
		return ErrEnded
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateConnecting
	s.startedAt = s.now()
	s.mu.Unlock()

	ctx, span := observe.StartSessionSpan(ctx, observe.SessionAttrs{ID: s.id, Role: s.cfg.Role, Model: s.cfg.Live.Model})
	s.rel.add("trace span", func() error {
		observe.EndSpan(span, s.Err())
		return nil
	})

	log := observe.WithTrace(ctx, s.log)
	log.Info("starting interview session")

	// End() cancels s.ctx; the start-up path must observe it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if s.mic != nil {
		if err := s.startCapture(ctx); err != nil {
			return s.abortStart(err)
		}
	}

	conn, err := s.connect(ctx, log)
	if err != nil {
		return s.abortStart(err)
	}

	s.mu.Lock()
	if s.tearing.Load() {
		s.mu.Unlock()
		_ = conn.Close(live.CloseReasonUserEnded)
		return s.endedErr()
	}
	s.conn = conn
	s.state = StateOpen
	s.connected.Store(true)
	if s.cfg.BootstrapDelay >= 0 {
		s.bootstrap = time.AfterFunc(s.cfg.BootstrapDelay, s.sendBootstrap)
	}
	s.mu.Unlock()

	s.rel.add("live connection", func() error {
		s.connected.Store(false)
		return conn.Close(s.closeReason())
	})
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.rel.add("session gauge", func() error {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
		return nil
	})

	go s.sendLoop(conn)

	log.Info("interview session open")
	return nil
}

func (s *Session) startCapture(ctx context.Context) error {
	p := capture.New(s.mic, &s.recording, &outbound{s: s},
		capture.WithLogger(s.log),
		capture.WithHooks(capture.Hooks{
			OnBlock:     func() { s.metrics.CapturedBlocks.Add(context.Background(), 1) },
			OnSent:      func() { s.metrics.SentPackets.Add(context.Background(), 1) },
			OnSendError: func(error) { s.metrics.SendErrors.Add(context.Background(), 1) },
			OnFault:     func(any) { s.metrics.CallbackFaults.Add(context.Background(), 1) },
		}),
	)
	if err := p.Start(ctx, s.cfg.Capture); err != nil {
		if s.tearing.Load() {
			return ErrEnded
		}
		s.log.Error("microphone unavailable", "err", err, "user_message", capture.UserMessage(err))
		return err
	}

	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
	if !s.rel.add("microphone", p.Stop) {
		return ErrEnded
	}
	return nil
}

// connect dials with bounded retries. Each attempt must reach OnOpen within
// the handshake timeout.
func (s *Session) connect(ctx context.Context, log *slog.Logger) (live.Conn, error) {
	var conn live.Conn
	err := resilience.Retry(ctx, resilience.RetryConfig{
		Name:       "live dial",
		Retries:    s.cfg.ConnectRetries,
		Backoff:    s.cfg.RetryBackoff,
		MaxBackoff: 8 * s.cfg.RetryBackoff,
		Logger:     log,
		Retryable: func(err error) bool {
			return !errors.Is(err, ErrEnded) && !errors.Is(err, context.Canceled)
		},
	}, func(ctx context.Context, attempt int) error {
		c, err := s.dialOnce(ctx, attempt)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		if s.tearing.Load() {
			return nil, ErrEnded
		}
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return conn, nil
}

func (s *Session) dialOnce(ctx context.Context, attempt int) (live.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancel()

	h := newHandler(s)
	start := time.Now()

	// Noisy provider warnings are only filtered for the duration of the dial.
	dctx := live.WithLogger(ctx, observe.WithSuppressed(s.log, s.cfg.BenignErrors...))
	conn, err := s.dialer.Dial(dctx, s.cfg.Live, h)
	if err != nil {
		h.detach()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrHandshakeTimeout, err)
		}
		return nil, err
	}

	select {
	case <-h.opened:
		s.metrics.HandshakeDuration.Record(ctx, time.Since(start).Seconds())
		s.log.Debug("handshake complete", "attempt", attempt, "elapsed", time.Since(start))
		return conn, nil
	case ev := <-h.closedEarly:
		h.detach()
		_ = conn.Close("handshake failed")
		return nil, fmt.Errorf("%w: closed during handshake: %d %s", ErrTransport, ev.Code, ev.Reason)
	case <-ctx.Done():
		h.detach()
		_ = conn.Close("handshake timeout")
		if s.tearing.Load() {
			return nil, ErrEnded
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrHandshakeTimeout
		}
		return nil, ctx.Err()
	}
}

// abortStart closes the session after a failed start and returns err.
func (s *Session) abortStart(err error) error {
	if errors.Is(err, ErrEnded) || s.tearing.Load() {
		return s.endedErr()
	}
	s.fail(err)
	return err
}

// endedErr is what Start reports once teardown has begun: the error that
// closed the session, or [ErrEnded] when the user ended it.
func (s *Session) endedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrEnded
}

// ToggleRecording flips the recording flag and reports the new value. The
// audio clock is resumed first so model audio becomes audible. It fails with
// [ErrNotConnected] and leaves the flag unchanged unless the session is open.
// Recording cannot be switched on without a running microphone stream
// ([ErrNoMicrophone]).
func (s *Session) ToggleRecording(ctx context.Context) (bool, error) {
	s.mu.Lock()
	open := s.state == StateOpen && s.connected.Load()
	p := s.pipeline
	s.mu.Unlock()
	if !open {
		return s.recording.Load(), ErrNotConnected
	}

	if err := s.graph.Resume(ctx); err != nil {
		s.log.Warn("could not resume audio clock", "err", err)
	}

	for {
		old := s.recording.Load()
		if !old && (p == nil || !p.Active()) {
			return false, ErrNoMicrophone
		}
		if s.recording.CompareAndSwap(old, !old) {
			s.log.Info("recording toggled", "recording", !old)
			return !old, nil
		}
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		ID:           s.id,
		State:        s.state,
		Messages:     len(s.messages),
		TurnMessages: len(s.turn),
		Elapsed:      s.elapsedLocked(),
	}
	p := s.pipeline
	s.mu.Unlock()

	if p != nil {
		snap.Capturing = p.Active()
	}
	snap.Connected = s.connected.Load()
	snap.Recording = s.recording.Load()
	snap.Speaking = s.sched.Speaking()
	snap.NextStartTime = s.sched.NextStartTime()
	snap.ActiveSources = s.sched.ActiveCount()
	return snap
}

// End tears the session down and returns its feedback. Teardown always runs
// first and completes regardless of feedback generation, which is bounded by
// the feedback timeout and falls back to the placeholder. End is idempotent;
// later calls return the same record.
func (s *Session) End() feedback.Feedback {
	s.endOnce.Do(func() {
		s.teardown(live.CloseReasonUserEnded)
		<-s.done
		s.endResult = s.generateFeedback()
	})
	return s.endResult
}

// fail records err (first error wins) and tears the session down.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.log.Error("interview session failed", "err", err)
	s.teardown("session error")
}

// teardown releases every resource once. Concurrent and re-entrant calls
// return immediately; wait on Done for completion.
func (s *Session) teardown(reason string) {
	if !s.tearing.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	s.state = StateClosed
	s.endedAt = s.now()
	s.reason = reason
	if s.bootstrap != nil {
		s.bootstrap.Stop()
	}
	s.mu.Unlock()

	s.connected.Store(false)
	s.recording.Store(false)
	s.cancel()
	s.rel.release()

	s.log.Info("interview session closed", "reason", reason)
	close(s.done)
}

func (s *Session) closeReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason == "" {
		return live.CloseReasonUserEnded
	}
	return s.reason
}

func (s *Session) elapsedLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	if !s.endedAt.IsZero() {
		return s.endedAt.Sub(s.startedAt)
	}
	return s.now().Sub(s.startedAt)
}

func (s *Session) sendBootstrap() {
	if s.tearing.Load() {
		return
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	text, err := renderBootstrap(s.cfg.BootstrapTemplate, s.cfg.Role)
	if err != nil {
		s.fail(err)
		return
	}
	if err := conn.SendClientContent(s.ctx, live.Turn{Role: "user", Text: text}); err != nil {
		if s.tearing.Load() {
			return
		}
		s.fail(fmt.Errorf("%w: bootstrap: %w", ErrTransport, err))
		return
	}
	s.log.Debug("bootstrap turn sent")
}

// sendLoop drains the outbound queue onto conn until the session ends.
func (s *Session) sendLoop(conn live.Conn) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case m := <-s.out:
			if err := conn.SendMedia(s.ctx, m); err != nil {
				// A closed connection is reported through OnClose.
				if s.tearing.Load() || errors.Is(err, live.ErrClosed) {
					return
				}
				s.fail(fmt.Errorf("%w: send audio: %w", ErrTransport, err))
				return
			}
		}
	}
}

// handleMessage processes one inbound message in the fixed order: log,
// extract audio, play, interrupt, turn boundary.
func (s *Session) handleMessage(msg *live.Message) {
	if msg == nil || s.tearing.Load() {
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.turn = append(s.turn, msg)
	s.mu.Unlock()

	if p, shape, ok := ExtractAudio(msg); ok {
		s.play(p, shape)
	}
	if text := partText(msg); text != "" {
		s.log.Debug("model text", "text", text)
	}

	sc := msg.ServerContent
	if sc == nil {
		return
	}
	if sc.Interrupted {
		s.sched.Interrupt()
		s.metrics.Interrupts.Add(context.Background(), 1)
		s.log.Debug("model speech interrupted")
	}
	if sc.TurnComplete {
		s.mu.Lock()
		s.turn = nil
		s.mu.Unlock()
	}
}

func (s *Session) play(p audio.Payload, shape string) {
	ctx := context.Background()
	buf, err := audio.DecodePayload(p, s.cfg.PlaybackRate, audio.DefaultChannels)
	if err != nil {
		reason := "pcm"
		if errors.Is(err, audio.ErrDecode) {
			reason = "base64"
		}
		s.metrics.RecordDecodeFailure(ctx, reason)
		s.log.Warn("dropping undecodable audio segment", "shape", shape, "err", err)
		return
	}
	if _, err := s.sched.Enqueue(buf); err != nil {
		s.log.Debug("audio segment not scheduled", "err", err)
		return
	}
	s.metrics.DecodedSegments.Add(ctx, 1, metric.WithAttributes(attribute.String("shape", shape)))
	s.metrics.SegmentDuration.Record(ctx, buf.DurationSeconds())
}

func (s *Session) handleError(err error) {
	if err == nil || s.tearing.Load() {
		return
	}
	if s.benign(err.Error()) {
		s.metrics.RecordTransportError(context.Background(), "error", true)
		s.log.Debug("ignoring benign transport error", "err", err)
		return
	}
	s.metrics.RecordTransportError(context.Background(), "error", false)
	s.fail(fmt.Errorf("%w: %w", ErrTransport, err))
}

func (s *Session) handleClose(ev live.CloseEvent) {
	if s.tearing.Load() {
		return
	}
	if ev.UserInitiated {
		s.teardown(ev.Reason)
		return
	}
	s.metrics.RecordTransportError(context.Background(), "close", false)
	s.fail(fmt.Errorf("%w (code %d: %s)", ErrUnexpectedClose, ev.Code, ev.Reason))
}

func (s *Session) benign(msg string) bool {
	for _, sub := range s.cfg.BenignErrors {
		if sub != "" && strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}

// generateFeedback runs the generator with a deadline. It never blocks past
// the feedback timeout and never fails.
func (s *Session) generateFeedback() feedback.Feedback {
	t := s.transcript()
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FeedbackTimeout)
	defer cancel()

	type result struct {
		fb  feedback.Feedback
		err error
	}
	ch := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("feedback generator panic: %v", r)}
			}
		}()
		fb, err := s.gen.Generate(ctx, t)
		ch <- result{fb: fb, err: err}
	}()

	var fb feedback.Feedback
	select {
	case r := <-ch:
		fb = r.fb
		if r.err != nil {
			s.log.Warn("feedback generation failed, using placeholder", "err", r.err)
			fb, _ = feedback.Placeholder{Now: s.now}.Generate(ctx, t)
		}
	case <-ctx.Done():
		s.log.Warn("feedback generation timed out, using placeholder", "timeout", s.cfg.FeedbackTimeout)
		fb, _ = feedback.Placeholder{Now: s.now}.Generate(context.Background(), t)
	}

	fb.SessionID = s.id
	s.metrics.RecordFeedback(context.Background(), fb.GeneratedBy, time.Since(start).Seconds())
	return fb
}

// transcript converts the message log into a feedback transcript. Adjacent
// fragments from the same speaker are merged.
func (s *Session) transcript() feedback.Transcript {
	s.mu.Lock()
	msgs := append([]*live.Message(nil), s.messages...)
	elapsed := s.elapsedLocked()
	s.mu.Unlock()

	var entries []feedback.Entry
	appendText := func(speaker, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		if n := len(entries); n > 0 && entries[n-1].Speaker == speaker {
			entries[n-1].Text += text
			return
		}
		entries = append(entries, feedback.Entry{Speaker: speaker, Text: text})
	}
	for _, m := range msgs {
		sc := m.ServerContent
		if sc == nil {
			continue
		}
		if sc.InputTranscription != nil {
			appendText(feedback.SpeakerCandidate, sc.InputTranscription.Text)
		}
		if sc.OutputTranscription != nil {
			appendText(feedback.SpeakerInterviewer, sc.OutputTranscription.Text)
		} else if text := partText(m); text != "" {
			appendText(feedback.SpeakerInterviewer, text)
		}
	}
	for i := range entries {
		entries[i].Text = strings.Join(strings.Fields(entries[i].Text), " ")
	}

	return feedback.Transcript{
		Role:     s.cfg.Role,
		Duration: elapsed,
		Messages: len(msgs),
		Entries:  entries,
	}
}

func partText(m *live.Message) string {
	p := firstPart(m)
	if p == nil {
		return ""
	}
	return p.Text
}
