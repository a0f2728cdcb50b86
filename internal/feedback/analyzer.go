package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/MrWong99/mockmate/pkg/provider/llm"
)

// ErrEmptyTranscript is returned by [Analyzer.Generate] when there is
// nothing to analyse.
var ErrEmptyTranscript = errors.New("feedback: empty transcript")

// ErrBadReply is returned when the model reply cannot be parsed into a rating.
var ErrBadReply = errors.New("feedback: unparseable model reply")

const analyzerSystemPrompt = `You are an experienced hiring manager reviewing a mock job interview.
Reply with a single JSON object and nothing else, using exactly these keys:
{"rating": <integer 1-5>, "summary": "<two or three sentences>",
 "strengths": ["..."], "improvements": ["..."]}`

var transcriptTmpl = template.Must(template.New("transcript").Parse(
	`Target role: {{.Role}}
Interview length: {{.Minutes}} minutes

Transcript:
{{range .Entries}}{{.Speaker}}: {{.Text}}
{{end}}`))

// Analyzer rates a transcript with an LLM.
type Analyzer struct {
	provider    llm.Provider
	name        string
	maxEntries  int
	temperature float64
	now         func() time.Time
}

var _ Generator = (*Analyzer)(nil)

// AnalyzerOption configures an [Analyzer].
type AnalyzerOption func(*Analyzer)

// WithMaxEntries keeps only the last n transcript entries in the prompt.
func WithMaxEntries(n int) AnalyzerOption {
	return func(a *Analyzer) { a.maxEntries = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) AnalyzerOption {
	return func(a *Analyzer) { a.temperature = t }
}

// WithClock overrides time.Now for CreatedAt.
func WithClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer returns an Analyzer that labels its records with name.
func NewAnalyzer(p llm.Provider, name string, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		provider:    p,
		name:        name,
		maxEntries:  200,
		temperature: 0.2,
		now:         time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

type reply struct {
	Rating       int      `json:"rating"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// Generate sends the transcript to the model and parses its JSON verdict.
func (a *Analyzer) Generate(ctx context.Context, t Transcript) (Feedback, error) {
	if len(t.Entries) == 0 {
		return Feedback{}, ErrEmptyTranscript
	}

	prompt, err := a.render(t)
	if err != nil {
		return Feedback{}, err
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: analyzerSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt}},
		Temperature:  a.temperature,
		MaxTokens:    1024,
		JSON:         true,
	})
	if err != nil {
		return Feedback{}, fmt.Errorf("feedback: analyze: %w", err)
	}
	if resp == nil {
		return Feedback{}, fmt.Errorf("%w: no response", ErrBadReply)
	}

	r, err := parseReply(resp.Content)
	if err != nil {
		return Feedback{}, err
	}

	return Feedback{
		Role:         t.Role,
		Rating:       r.Rating,
		Summary:      strings.TrimSpace(r.Summary),
		Strengths:    r.Strengths,
		Improvements: r.Improvements,
		DurationSecs: t.Duration.Seconds(),
		GeneratedBy:  a.name,
		CreatedAt:    a.now().UTC(),
	}, nil
}

func (a *Analyzer) render(t Transcript) (string, error) {
	entries := t.Entries
	if a.maxEntries > 0 && len(entries) > a.maxEntries {
		entries = entries[len(entries)-a.maxEntries:]
	}
	var buf bytes.Buffer
	err := transcriptTmpl.Execute(&buf, struct {
		Role    string
		Minutes string
		Entries []Entry
	}{
		Role:    t.Role,
		Minutes: fmt.Sprintf("%.1f", t.Duration.Minutes()),
		Entries: entries,
	})
	if err != nil {
		return "", fmt.Errorf("feedback: render prompt: %w", err)
	}
	return buf.String(), nil
}

// parseReply extracts the first JSON object from content. Models often wrap
// JSON in a markdown fence or add a sentence around it.
func parseReply(content string) (reply, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return reply{}, fmt.Errorf("%w: no JSON object", ErrBadReply)
	}

	var r reply
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return reply{}, fmt.Errorf("%w: rating %d out of range", ErrBadReply, r.Rating)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return reply{}, fmt.Errorf("%w: empty summary", ErrBadReply)
	}
	return r, nil
}
