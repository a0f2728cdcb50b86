// Package config provides the configuration schema, loader, and provider
// registry for mockmate.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Sensitivity is a voice activity detection sensitivity level.
type Sensitivity string

const (
	SensitivityHigh Sensitivity = "high"
	SensitivityLow  Sensitivity = "low"
)

// IsValid reports whether s is a recognised sensitivity.
func (s Sensitivity) IsValid() bool {
	return s == SensitivityHigh || s == SensitivityLow
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Audio     AudioConfig     `yaml:"audio"`
	Live      LiveConfig      `yaml:"live"`
	Interview InterviewConfig `yaml:"interview"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
}

// ServerConfig holds the side HTTP server and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the health and metrics server
	// (e.g., "127.0.0.1:9464"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// AudioConfig selects the local devices and stream formats.
type AudioConfig struct {
	// InputDevice and OutputDevice select devices by name. Empty means the
	// system default.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`

	// CaptureRate is the microphone sample rate sent to the model.
	CaptureRate int `yaml:"capture_rate"`

	// PlaybackRate is the model output rate assumed when a payload names none.
	// The speaker is opened at this rate.
	PlaybackRate int `yaml:"playback_rate"`

	// BlockSize is the number of frames per captured block.
	BlockSize int `yaml:"block_size"`

	// Processing hints. Nil means enabled.
	EchoCancellation *bool `yaml:"echo_cancellation"`
	NoiseSuppression *bool `yaml:"noise_suppression"`
	AutoGainControl  *bool `yaml:"auto_gain_control"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini-live", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// LiveConfig configures the real-time model connection.
type LiveConfig struct {
	ProviderEntry `yaml:",inline"`

	Voice            string `yaml:"voice"`
	Language         string `yaml:"language"`
	ResponseModality string `yaml:"response_modality"`

	StartSensitivity  Sensitivity `yaml:"start_sensitivity"`
	EndSensitivity    Sensitivity `yaml:"end_sensitivity"`
	PrefixPaddingMs   int         `yaml:"prefix_padding_ms"`
	SilenceDurationMs int         `yaml:"silence_duration_ms"`

	// SystemInstruction is the interviewer persona sent at setup.
	SystemInstruction string `yaml:"system_instruction"`

	// Transcribe requests input and output transcriptions, which feed the
	// feedback analysis.
	Transcribe *bool `yaml:"transcribe"`

	// HandshakeTimeout bounds each connection attempt.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ConnectRetries is the number of extra dial attempts. Negative disables
	// retries.
	ConnectRetries int `yaml:"connect_retries"`

	// RetryBackoff is the wait before the first retry.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// InterviewConfig holds per-session behaviour.
type InterviewConfig struct {
	// Role is the job role to interview for. The command line may override it.
	Role string `yaml:"role"`

	// BootstrapTemplate is a text/template with a {{.Role}} field.
	BootstrapTemplate string `yaml:"bootstrap_template"`

	// BootstrapDelay is the wait between open and the opening instruction.
	// Negative disables the opening instruction.
	BootstrapDelay time.Duration `yaml:"bootstrap_delay"`

	// BenignErrors lists substrings of transport errors that are ignored.
	BenignErrors []string `yaml:"benign_errors"`

	// SendQueue is the outbound audio queue capacity in blocks.
	SendQueue int `yaml:"send_queue"`
}

// FeedbackConfig configures post-interview analysis and storage.
type FeedbackConfig struct {
	// LLM selects the analysis model. An empty name uses the static
	// placeholder feedback.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary model fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// Timeout bounds feedback generation when a session ends.
	Timeout time.Duration `yaml:"timeout"`

	// MaxFailures opens the analysis circuit breaker after this many
	// consecutive failures.
	MaxFailures int `yaml:"max_failures"`

	// StorePath is the JSON-lines file feedback records are appended to.
	// Empty disables persistence.
	StorePath string `yaml:"store_path"`
}

// Enabled reports whether b is nil or true.
func Enabled(b *bool) bool { return b == nil || *b }
