package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogLevel         = LogInfo
	DefaultCaptureRate      = 16000
	DefaultPlaybackRate     = 24000
	DefaultBlockSize        = 512
	DefaultLiveProvider     = "gemini-live"
	DefaultModality         = "AUDIO"
	DefaultHandshakeTimeout = 15 * time.Second
	DefaultRetryBackoff     = 500 * time.Millisecond
	DefaultFeedbackTimeout  = 20 * time.Second
	DefaultMaxFailures      = 3
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live": {"gemini-live"},
	"llm":  {"openai", "openai-compatible", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}

	if cfg.Audio.CaptureRate == 0 {
		cfg.Audio.CaptureRate = DefaultCaptureRate
	}
	if cfg.Audio.PlaybackRate == 0 {
		cfg.Audio.PlaybackRate = DefaultPlaybackRate
	}
	if cfg.Audio.BlockSize == 0 {
		cfg.Audio.BlockSize = DefaultBlockSize
	}

	if cfg.Live.Name == "" {
		cfg.Live.Name = DefaultLiveProvider
	}
	if cfg.Live.ResponseModality == "" {
		cfg.Live.ResponseModality = DefaultModality
	}
	if cfg.Live.HandshakeTimeout == 0 {
		cfg.Live.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Live.RetryBackoff == 0 {
		cfg.Live.RetryBackoff = DefaultRetryBackoff
	}

	if cfg.Feedback.Timeout == 0 {
		cfg.Feedback.Timeout = DefaultFeedbackTimeout
	}
	if cfg.Feedback.MaxFailures == 0 {
		cfg.Feedback.MaxFailures = DefaultMaxFailures
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Audio
	if cfg.Audio.CaptureRate < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.PlaybackRate < 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", cfg.Audio.PlaybackRate))
	}
	if cfg.Audio.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d must be positive", cfg.Audio.BlockSize))
	}

	// Live
	if cfg.Live.Name == "" {
		errs = append(errs, errors.New("live.name is required"))
	}
	validateProviderName("live", cfg.Live.Name)
	for field, s := range map[string]Sensitivity{
		"live.start_sensitivity": cfg.Live.StartSensitivity,
		"live.end_sensitivity":   cfg.Live.EndSensitivity,
	} {
		if s != "" && !s.IsValid() {
			errs = append(errs, fmt.Errorf("%s %q is invalid; valid values: high, low", field, s))
		}
	}
	if cfg.Live.PrefixPaddingMs < 0 {
		errs = append(errs, fmt.Errorf("live.prefix_padding_ms %d must not be negative", cfg.Live.PrefixPaddingMs))
	}
	if cfg.Live.SilenceDurationMs < 0 {
		errs = append(errs, fmt.Errorf("live.silence_duration_ms %d must not be negative", cfg.Live.SilenceDurationMs))
	}
	if cfg.Live.HandshakeTimeout < 0 {
		errs = append(errs, fmt.Errorf("live.handshake_timeout %s must not be negative", cfg.Live.HandshakeTimeout))
	}
	if cfg.Live.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("live.retry_backoff %s must not be negative", cfg.Live.RetryBackoff))
	}

	// Interview
	if cfg.Interview.SendQueue < 0 {
		errs = append(errs, fmt.Errorf("interview.send_queue %d must not be negative", cfg.Interview.SendQueue))
	}

	// Feedback
	validateProviderName("llm", cfg.Feedback.LLM.Name)
	if cfg.Feedback.LLM.Name == "" && len(cfg.Feedback.Fallbacks) > 0 {
		errs = append(errs, errors.New("feedback.fallbacks requires feedback.llm.name"))
	}
	for i, fb := range cfg.Feedback.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("feedback.fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if cfg.Feedback.Timeout < 0 {
		errs = append(errs, fmt.Errorf("feedback.timeout %s must not be negative", cfg.Feedback.Timeout))
	}
	if cfg.Feedback.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("feedback.max_failures %d must not be negative", cfg.Feedback.MaxFailures))
	}
	if cfg.Feedback.LLM.Name == "" {
		slog.Debug("feedback.llm is not configured; sessions will end with placeholder feedback")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
