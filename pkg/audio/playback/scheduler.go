// Package playback schedules decoded model speech on an audio graph so that
// consecutive segments play back-to-back without gaps or overlap, and cancels
// everything at once when the user barges in.
package playback

import (
	"log/slog"
	"sync"

	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/audio/graph"
)

// Option is a functional option for [New].
type Option func(*Scheduler)

// WithSpeakingChange registers fn to be called whenever the speaking flag
// flips. fn runs outside the scheduler lock, one call at a time, and must not
// call Enqueue or Interrupt.
func WithSpeakingChange(fn func(speaking bool)) Option {
	return func(s *Scheduler) { s.onSpeaking = fn }
}

// WithActiveChange registers fn to be called with the change in the number of
// active sources: +1 per enqueue, -1 per natural end, -n on interrupt.
func WithActiveChange(fn func(delta int)) Option {
	return func(s *Scheduler) { s.onActive = fn }
}

// WithLogger sets the logger used for interrupt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler queues buffers on a [graph.Graph] back-to-back.
//
// Invariants:
//   - nextStartTime never falls behind the graph clock when a buffer is
//     scheduled, so nothing is started in the past.
//   - Speaking reports true iff at least one scheduled source is active.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	graph      *graph.Graph
	onSpeaking func(bool)
	onActive   func(int)
	log        *slog.Logger

	mu        sync.Mutex
	nextStart float64
	active    map[*graph.Source]struct{}
	speaking  bool
	speakSeq  uint64 // bumped on every speaking change

	notifyMu  sync.Mutex
	delivered uint64 // speakSeq of the last change passed to onSpeaking
}

// New returns a Scheduler that plays onto g.
func New(g *graph.Graph, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:  g,
		active: make(map[*graph.Source]struct{}),
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue schedules buf to start where the previous buffer ends, or now if
// the queue has drained. It returns the created source.
func (s *Scheduler) Enqueue(buf *audio.Buffer) (*graph.Source, error) {
	s.mu.Lock()
	now := s.graph.CurrentTime()
	s.nextStart = max(s.nextStart, now)

	src, err := s.graph.Schedule(buf, s.nextStart, s.ended)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	// Advance in whole graph frames; the graph may resample buf.
	s.nextStart = src.EndTime()
	s.active[src] = struct{}{}
	seq, speaking := s.setSpeakingLocked()
	s.mu.Unlock()

	s.notify(seq, speaking)
	s.activeDelta(1)
	return src, nil
}

// Interrupt stops every active source, empties the active set and resets the
// schedule cursor so the next buffer starts at the current clock.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	n := len(s.active)
	for src := range s.active {
		src.Stop()
	}
	clear(s.active)
	s.nextStart = 0
	seq, speaking := s.setSpeakingLocked()
	s.mu.Unlock()

	if n > 0 {
		s.log.Debug("playback interrupted", "stopped_sources", n)
	}
	s.notify(seq, speaking)
	s.activeDelta(-n)
}

// Speaking reports whether any scheduled audio is still playing or queued.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// NextStartTime returns the graph time at which the next buffer would start
// if the clock had not passed it.
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}

// ActiveCount returns the number of scheduled sources that have not ended.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ended is the natural-completion callback of every scheduled source.
func (s *Scheduler) ended(src *graph.Source) {
	s.mu.Lock()
	_, ok := s.active[src]
	delete(s.active, src)
	seq, speaking := s.setSpeakingLocked()
	s.mu.Unlock()

	s.notify(seq, speaking)
	if ok {
		s.activeDelta(-1)
	}
}

// setSpeakingLocked updates the speaking flag from the active set. It returns
// the sequence number of the change, or 0 if the flag did not change.
func (s *Scheduler) setSpeakingLocked() (uint64, bool) {
	speaking := len(s.active) > 0
	if speaking == s.speaking {
		return 0, speaking
	}
	s.speaking = speaking
	s.speakSeq++
	return s.speakSeq, speaking
}

// notify delivers a speaking change. Changes are delivered in sequence order;
// one overtaken by a later change is dropped, so the last value delivered is
// always the current state.
func (s *Scheduler) notify(seq uint64, speaking bool) {
	if seq == 0 || s.onSpeaking == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	s.onSpeaking(speaking)
}

func (s *Scheduler) activeDelta(delta int) {
	if delta != 0 && s.onActive != nil {
		s.onActive(delta)
	}
}
