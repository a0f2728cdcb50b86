package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/mockmate/pkg/provider/llm"
	llmmock "github.com/MrWong99/mockmate/pkg/provider/llm/mock"
)

func sampleTranscript() Transcript {
	return Transcript{
		Role:     "Backend Engineer",
		Duration: 3 * time.Minute,
		Messages: 12,
		Entries: []Entry{
			{Speaker: SpeakerInterviewer, Text: "Tell me about a system you scaled."},
			{Speaker: SpeakerCandidate, Text: "I sharded our Postgres cluster."},
		},
	}
}

func TestParseReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		rating  int
		wantErr bool
	}{
		{name: "plain", content: `{"rating":4,"summary":"Solid."}`, rating: 4},
		{name: "fenced", content: "```json\n{\"rating\":2,\"summary\":\"Vague.\"}\n```", rating: 2},
		{name: "prose around", content: `Here you go: {"rating":5,"summary":"Great","strengths":["x"]} Thanks!`, rating: 5},
		{name: "no object", content: "I cannot rate this.", wantErr: true},
		{name: "out of range", content: `{"rating":9,"summary":"?"}`, wantErr: true},
		{name: "zero rating", content: `{"summary":"missing rating"}`, wantErr: true},
		{name: "empty summary", content: `{"rating":3,"summary":"  "}`, wantErr: true},
		{name: "broken json", content: `{"rating":3,"summary":}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := parseReply(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrBadReply) {
					t.Fatalf("err = %v, want ErrBadReply", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Rating != tt.rating {
				t.Errorf("rating = %d, want %d", r.Rating, tt.rating)
			}
		})
	}
}

func TestAnalyzer_Generate(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: `{"rating":4,"summary":"Clear answers.","strengths":["depth"],"improvements":["brevity"]}`,
	}}
	fixed := time.Date(2026, 5, 5, 9, 0, 0, 0, time.UTC)
	a := NewAnalyzer(p, "anyllm/gemini", WithClock(func() time.Time { return fixed }))

	fb, err := a.Generate(context.Background(), sampleTranscript())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fb.Rating != 4 || fb.Summary != "Clear answers." {
		t.Errorf("feedback = %+v", fb)
	}
	if fb.GeneratedBy != "anyllm/gemini" {
		t.Errorf("generated_by = %q", fb.GeneratedBy)
	}
	if fb.Role != "Backend Engineer" || fb.DurationSecs != 180 {
		t.Errorf("role/duration = %q/%v", fb.Role, fb.DurationSecs)
	}
	if !fb.CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v", fb.CreatedAt)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if req.SystemPrompt == "" {
		t.Error("expected system prompt")
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{"Backend Engineer", "3.0 minutes", "candidate: I sharded our Postgres cluster."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestAnalyzer_MaxEntriesKeepsTail(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"rating":3,"summary":"ok"}`}}
	a := NewAnalyzer(p, "x", WithMaxEntries(1))

	if _, err := a.Generate(context.Background(), sampleTranscript()); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prompt := p.Calls()[0].Req.Messages[0].Content
	if strings.Contains(prompt, "Tell me about") {
		t.Error("prompt should only contain the last entry")
	}
}

func TestAnalyzer_Errors(t *testing.T) {
	t.Parallel()

	t.Run("empty transcript", func(t *testing.T) {
		a := NewAnalyzer(&llmmock.Provider{}, "x")
		if _, err := a.Generate(context.Background(), Transcript{}); !errors.Is(err, ErrEmptyTranscript) {
			t.Fatalf("err = %v, want ErrEmptyTranscript", err)
		}
	})
	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("quota exceeded")
		a := NewAnalyzer(&llmmock.Provider{CompleteErr: boom}, "x")
		if _, err := a.Generate(context.Background(), sampleTranscript()); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped provider error", err)
		}
	})
	t.Run("nil response", func(t *testing.T) {
		a := NewAnalyzer(&llmmock.Provider{}, "x")
		if _, err := a.Generate(context.Background(), sampleTranscript()); !errors.Is(err, ErrBadReply) {
			t.Fatalf("err = %v, want ErrBadReply", err)
		}
	})
}
