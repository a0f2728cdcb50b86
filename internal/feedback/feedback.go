// Package feedback turns a finished interview into a rating record.
//
// A [Generator] receives the session transcript (message log, job role and
// duration) and returns a [Feedback]. [Placeholder] is the static canned
// rating; [Analyzer] asks an LLM; [Guarded] wraps a generator with a circuit
// breaker, a deadline and a placeholder fallback so that ending a session
// never depends on the analysis succeeding. [FileStore] appends records to a
// JSON-lines file.
package feedback

import (
	"context"
	"time"
)

// Speaker labels for transcript entries.
const (
	SpeakerInterviewer = "interviewer"
	SpeakerCandidate   = "candidate"
)

// Entry is one line of the interview transcript.
type Entry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is what a [Generator] analyses.
type Transcript struct {
	// Role is the target job role of the interview.
	Role string

	// Duration is the wall-clock length of the session.
	Duration time.Duration

	// Messages is the number of inbound messages in the session log.
	Messages int

	// Entries holds the text content of the log in arrival order.
	Entries []Entry
}

// Feedback is the rating record returned when a session ends.
type Feedback struct {
	SessionID    string    `json:"session_id,omitempty"`
	Role         string    `json:"role"`
	Rating       int       `json:"rating"`
	Summary      string    `json:"summary"`
	Strengths    []string  `json:"strengths,omitempty"`
	Improvements []string  `json:"improvements,omitempty"`
	DurationSecs float64   `json:"duration_seconds"`
	GeneratedBy  string    `json:"generated_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Duration returns the session length as a time.Duration.
func (f Feedback) Duration() time.Duration {
	return time.Duration(f.DurationSecs * float64(time.Second))
}

// Generator produces feedback for a transcript.
type Generator interface {
	Generate(ctx context.Context, t Transcript) (Feedback, error)
}

// GeneratorFunc adapts a function to [Generator].
type GeneratorFunc func(ctx context.Context, t Transcript) (Feedback, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, t Transcript) (Feedback, error) {
	return f(ctx, t)
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Placeholder returns the same canned rating for every session.
type Placeholder struct {
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

var _ Generator = Placeholder{}

// PlaceholderSummary is the canned summary text.
const PlaceholderSummary = "Thanks for practising. A detailed analysis of this interview is not available, " +
	"but keep structuring answers around concrete situations, actions and results."

// Generate never fails.
func (p Placeholder) Generate(_ context.Context, t Transcript) (Feedback, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Feedback{
		Role:         t.Role,
		Rating:       3,
		Summary:      PlaceholderSummary,
		Strengths:    []string{"Completed the interview session"},
		Improvements: []string{"Give specific examples with measurable outcomes"},
		DurationSecs: t.Duration.Seconds(),
		GeneratedBy:  "placeholder",
		CreatedAt:    now().UTC(),
	}, nil
}
