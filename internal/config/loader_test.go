package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/mockmate/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: loud\n",
			wantErr: "server.log_level",
		},
		{
			name:    "tls without key",
			yaml:    "server:\n  tls:\n    cert_file: cert.pem\n",
			wantErr: "server.tls",
		},
		{
			name:    "negative capture rate",
			yaml:    "audio:\n  capture_rate: -1\n",
			wantErr: "audio.capture_rate",
		},
		{
			name:    "invalid sensitivity",
			yaml:    "live:\n  start_sensitivity: medium\n",
			wantErr: "live.start_sensitivity",
		},
		{
			name:    "negative silence",
			yaml:    "live:\n  silence_duration_ms: -5\n",
			wantErr: "live.silence_duration_ms",
		},
		{
			name:    "negative handshake timeout",
			yaml:    "live:\n  handshake_timeout: -1s\n",
			wantErr: "live.handshake_timeout",
		},
		{
			name:    "negative send queue",
			yaml:    "interview:\n  send_queue: -2\n",
			wantErr: "interview.send_queue",
		},
		{
			name:    "fallbacks without primary",
			yaml:    "feedback:\n  fallbacks:\n    - name: ollama\n",
			wantErr: "feedback.fallbacks requires",
		},
		{
			name:    "unnamed fallback",
			yaml:    "feedback:\n  llm:\n    name: openai\n  fallbacks:\n    - model: x\n",
			wantErr: "feedback.fallbacks[0].name",
		},
		{
			name: "negative retries allowed",
			yaml: "live:\n  connect_retries: -1\n",
		},
		{
			name: "unknown provider only warns",
			yaml: "feedback:\n  llm:\n    name: my-llm\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
live:
  end_sensitivity: maybe
feedback:
  max_failures: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "live.end_sensitivity", "feedback.max_failures"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Audio.PlaybackRate = 48000
	cfg.Live.Name = "custom"
	config.ApplyDefaults(cfg)

	if cfg.Audio.PlaybackRate != 48000 {
		t.Errorf("playback rate = %d, want 48000", cfg.Audio.PlaybackRate)
	}
	if cfg.Live.Name != "custom" {
		t.Errorf("live name = %q, want custom", cfg.Live.Name)
	}
	if cfg.Audio.CaptureRate != config.DefaultCaptureRate {
		t.Errorf("capture rate = %d", cfg.Audio.CaptureRate)
	}
}
