// Package gemini implements live.Dialer for Google's Gemini Live API.
//
// It establishes a bidirectional WebSocket connection to the Gemini Live endpoint
// and exchanges JSON messages according to the BidiGenerateContent protocol.
// Audio is transmitted as base64-encoded PCM chunks inside realtimeInput
// messages; model audio arrives as inlineData parts of serverContent.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockmate/pkg/live"
)

// Compile-time assertions that Dialer and conn satisfy the live interfaces.
var _ live.Dialer = (*Dialer)(nil)
var _ live.Conn = (*conn)(nil)

const (
	defaultModel   = "gemini-2.0-flash-live-001"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"

	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second

	// readLimit bounds a single inbound frame. Audio turns can be large.
	readLimit = 16 << 20
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Dialer.
type Option func(*Dialer)

// WithModel sets the Gemini model used when the session config names none.
func WithModel(model string) Option {
	return func(d *Dialer) { d.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(d *Dialer) { d.baseURL = url }
}

// WithHTTPClient sets the HTTP client used for the WebSocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dialer) { d.httpClient = c }
}

// ── Dialer ─────────────────────────────────────────────────────────────────────

// Dialer implements live.Dialer for Google's Gemini Live API.
type Dialer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a new Gemini Live Dialer with the given API key and options.
func New(apiKey string, opts ...Option) *Dialer {
	d := &Dialer{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dial opens a session and sends the setup message. h.OnOpen is called from
// the receive loop once the server acknowledges the setup.
func (d *Dialer) Dial(ctx context.Context, cfg live.Config, h live.Handler) (live.Conn, error) {
	log := live.Logger(ctx)
	wsURL := d.endpoint()

	log.Debug("gemini: dialing", "base_url", d.baseURL)
	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: d.httpClient,
		HTTPHeader: http.Header{
			"Content-Type": []string{"application/json"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial: %w", err)
	}
	ws.SetReadLimit(readLimit)

	sessCtx, sessCancel := context.WithCancel(context.Background())
	c := &conn{
		ws:      ws,
		handler: h,
		ctx:     sessCtx,
		cancel:  sessCancel,
	}

	model := cfg.Model
	if model == "" {
		model = d.model
	}
	if err := c.writeJSON(ctx, buildSetup(model, cfg)); err != nil {
		sessCancel()
		ws.Close(websocket.StatusInternalError, "setup failed")
		return nil, fmt.Errorf("gemini: setup: %w", err)
	}
	log.Debug("gemini: setup sent", "model", model)

	go c.receiveLoop()
	go c.keepaliveLoop()

	return c, nil
}

// endpoint returns the WebSocket URL for the configured credential. Ephemeral
// tokens ("auth_tokens/...") must use the constrained v1alpha method and are
// passed as access_token instead of key.
func (d *Dialer) endpoint() string {
	if IsEphemeralToken(d.apiKey) {
		return fmt.Sprintf(
			"%s/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContentConstrained?access_token=%s",
			d.baseURL, url.QueryEscape(d.apiKey),
		)
	}
	return fmt.Sprintf(
		"%s/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent?key=%s",
		d.baseURL, url.QueryEscape(d.apiKey),
	)
}

// IsEphemeralToken reports whether key is a short-lived auth token rather
// than a long-lived API key.
func IsEphemeralToken(key string) bool {
	return strings.HasPrefix(key, "auth_tokens/")
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type setupMessage struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model                    string               `json:"model"`
	GenerationConfig         generationConfig     `json:"generationConfig"`
	SystemInstruction        *content             `json:"systemInstruction,omitempty"`
	RealtimeInputConfig      *realtimeInputConfig `json:"realtimeInputConfig,omitempty"`
	InputAudioTranscription  *struct{}            `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}            `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig  *voiceConfig `json:"voiceConfig,omitempty"`
	LanguageCode string       `json:"languageCode,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type realtimeInputConfig struct {
	AutomaticActivityDetection activityDetection `json:"automaticActivityDetection"`
}

type activityDetection struct {
	StartOfSpeechSensitivity string `json:"startOfSpeechSensitivity,omitempty"`
	EndOfSpeechSensitivity   string `json:"endOfSpeechSensitivity,omitempty"`
	PrefixPaddingMs          int    `json:"prefixPaddingMs,omitempty"`
	SilenceDurationMs        int    `json:"silenceDurationMs,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64-encoded
}

type clientContentMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

func buildSetup(model string, cfg live.Config) setupMessage {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	modality := cfg.ResponseModality
	if modality == "" {
		modality = "AUDIO"
	}
	msg := setupMessage{
		Setup: setupConfig{
			Model: model,
			GenerationConfig: generationConfig{
				ResponseModalities: []string{modality},
			},
		},
	}

	if cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}

	if cfg.Voice != "" || cfg.Language != "" {
		sc := &speechConfig{LanguageCode: cfg.Language}
		if cfg.Voice != "" {
			sc.VoiceConfig = &voiceConfig{PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice}}
		}
		msg.Setup.GenerationConfig.SpeechConfig = sc
	}

	if cfg.StartSensitivity != "" || cfg.EndSensitivity != "" || cfg.PrefixPaddingMs > 0 || cfg.SilenceDurationMs > 0 {
		msg.Setup.RealtimeInputConfig = &realtimeInputConfig{
			AutomaticActivityDetection: activityDetection{
				StartOfSpeechSensitivity: cfg.StartSensitivity,
				EndOfSpeechSensitivity:   cfg.EndSensitivity,
				PrefixPaddingMs:          cfg.PrefixPaddingMs,
				SilenceDurationMs:        cfg.SilenceDurationMs,
			},
		}
	}

	if cfg.Transcribe {
		msg.Setup.InputAudioTranscription = &struct{}{}
		msg.Setup.OutputAudioTranscription = &struct{}{}
	}
	return msg
}

// ── conn ───────────────────────────────────────────────────────────────────────

type conn struct {
	ws      *websocket.Conn
	handler live.Handler

	mu          sync.Mutex
	closed      bool
	closeReason string
	opened      bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (c *conn) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: marshal: %w", err)
	}
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// send writes v unless the connection has been closed. ctx bounds the write
// in addition to the session lifetime.
func (c *conn) send(ctx context.Context, v any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return live.ErrClosed
	}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if err := c.writeJSON(ctx, v); err != nil {
		if c.ctx.Err() != nil {
			return live.ErrClosed
		}
		return fmt.Errorf("gemini: write: %w", err)
	}
	return nil
}

// receiveLoop reads messages from the WebSocket and dispatches them to the
// handler. It reports OnClose exactly once when it exits.
func (c *conn) receiveLoop() {
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.finish(err)
			return
		}

		var msg live.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}
		c.dispatch(&msg)
	}
}

func (c *conn) dispatch(msg *live.Message) {
	if msg.SetupComplete != nil {
		c.mu.Lock()
		first := !c.opened
		c.opened = true
		c.mu.Unlock()
		if first {
			c.handler.OnOpen()
		}
	}
	if msg.Error != nil {
		c.handler.OnError(msg.Error)
	}
	if msg.ServerContent != nil || msg.Data != "" {
		c.handler.OnMessage(msg)
	}
}

// finish translates the terminal read error into a close event.
func (c *conn) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		local := c.closed
		reason := c.closeReason
		c.mu.Unlock()

		if local {
			c.handler.OnClose(live.CloseEvent{
				Code:          int(websocket.StatusNormalClosure),
				Reason:        reason,
				UserInitiated: reason == live.CloseReasonUserEnded,
			})
			return
		}

		ev := live.CloseEvent{Code: int(websocket.CloseStatus(err))}
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			ev.Reason = ce.Reason
		} else {
			c.handler.OnError(fmt.Errorf("gemini: read: %w", err))
			ev.Reason = err.Error()
		}
		c.cancel()
		c.handler.OnClose(ev)
	})
}

// keepaliveLoop sends WebSocket pings to keep the Gemini Live connection alive.
func (c *conn) keepaliveLoop() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, keepaliveTimeout)
			_ = c.ws.Ping(pingCtx)
			cancel()
		}
	}
}

// ── live.Conn methods ──────────────────────────────────────────────────────────

// SendMedia delivers one base64 PCM chunk to the model.
func (c *conn) SendMedia(ctx context.Context, msg live.MediaMessage) error {
	return c.send(ctx, realtimeInputMessage{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{MIMEType: msg.Media.MIMEType, Data: msg.Media.Data}},
		},
	})
}

// SendClientContent sends a complete text turn.
func (c *conn) SendClientContent(ctx context.Context, turn live.Turn) error {
	role := turn.Role
	if role == "" {
		role = "user"
	}
	return c.send(ctx, clientContentMessage{
		ClientContent: clientContent{
			Turns:        []content{{Role: role, Parts: []part{{Text: turn.Text}}}},
			TurnComplete: true,
		},
	})
}

// Close terminates the session and releases all resources. Idempotent.
func (c *conn) Close(reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeReason = reason
	c.mu.Unlock()

	// Best-effort: the peer may already be gone.
	_ = c.ws.Close(websocket.StatusNormalClosure, reason)
	c.cancel() // unblocks receiveLoop and keepaliveLoop
	return nil
}
