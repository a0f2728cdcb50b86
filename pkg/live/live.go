// Package live defines the provider-agnostic contract for a bidirectional
// real-time model session: audio chunks and text turns go up, model turns
// with inline audio come down.
//
// Implementations (e.g. package gemini) translate between these types and a
// concrete wire protocol. Callbacks on [Handler] are invoked from the
// connection's receive goroutine, one at a time and in arrival order.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
)

// CloseReasonUserEnded is the close reason sent when the local user ends the
// session. A close carrying it is reported as user-initiated.
const CloseReasonUserEnded = "user ended session"

// ErrClosed is returned by send operations on a closed connection.
var ErrClosed = errors.New("live: connection closed")

// Config is the per-session model configuration. It is passed through to the
// provider unchanged; only presence of the model is checked locally.
type Config struct {
	Model    string
	Voice    string
	Language string

	// ResponseModality is the requested output modality, normally "AUDIO".
	ResponseModality string

	// Voice activity detection tuning.
	StartSensitivity  string
	EndSensitivity    string
	PrefixPaddingMs   int
	SilenceDurationMs int

	SystemInstruction string

	// Transcribe asks the provider for input and output transcriptions.
	Transcribe bool
}

// Media is one outbound audio chunk.
type Media struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// MediaMessage is the outbound realtime audio message.
type MediaMessage struct {
	Media Media `json:"media"`
}

// Turn is a client text turn, e.g. the session bootstrap instruction.
type Turn struct {
	Role string
	Text string
}

// Blob is inline binary data in a message part.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType,omitempty"`
}

// Part is one element of a model turn.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`

	// Audio is an alternative audio shape some providers emit.
	Audio *Blob `json:"audio,omitempty"`
}

// ModelTurn is the model's contribution within a server content message.
type ModelTurn struct {
	Parts []Part `json:"parts"`
}

// Transcription is a text rendering of spoken audio.
type Transcription struct {
	Text string `json:"text"`
}

// ServerContent carries model output and turn control flags.
type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// ServerError is an error reported in-band by the provider.
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "live: server error"
	}
	return "live: server error: " + e.Message
}

// Message is one inbound message. Any field may be absent.
type Message struct {
	ServerContent *ServerContent   `json:"serverContent,omitempty"`
	Data          string           `json:"data,omitempty"`
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	Error         *ServerError     `json:"error,omitempty"`
}

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	Code   int
	Reason string

	// UserInitiated is true when the close was requested locally with
	// [CloseReasonUserEnded].
	UserInitiated bool
}

// Handler receives connection lifecycle events and messages.
type Handler interface {
	// OnOpen is called once the provider has accepted the session setup.
	OnOpen()
	OnMessage(msg *Message)
	OnError(err error)

	// OnClose is called exactly once when the connection is gone.
	OnClose(ev CloseEvent)
}

// Conn is an established session.
type Conn interface {
	SendMedia(ctx context.Context, msg MediaMessage) error
	SendClientContent(ctx context.Context, turn Turn) error

	// Close ends the session with reason. Close is idempotent.
	Close(reason string) error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg Config, h Handler) (Conn, error)
}

type loggerKey struct{}

// WithLogger returns a context that carries l for use by dialers.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// Logger returns the logger stored by [WithLogger], or slog.Default.
func Logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
