// Package graph is a small pull-driven audio graph. Sources are scheduled at
// absolute times on the graph clock and mixed into the output when the device
// pulls frames with [Graph.Render]. The clock only advances while the graph is
// running and frames are being rendered, so it tracks the hardware position.
package graph

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/MrWong99/mockmate/pkg/audio"
)

// ErrClosed is returned by operations on a closed graph.
var ErrClosed = errors.New("graph: closed")

// State is the run state of a [Graph].
type State int

const (
	// StateSuspended means the clock is halted and Render outputs silence.
	StateSuspended State = iota
	// StateRunning means Render advances the clock and mixes sources.
	StateRunning
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Graph mixes scheduled sources into an interleaved float output stream.
// A new graph starts suspended. All methods are safe for concurrent use.
type Graph struct {
	format audio.Format
	conv   audio.FormatConverter

	mu      sync.Mutex
	state   State
	frames  int64
	sources []*Source
}

// New creates a suspended graph rendering at the given format.
func New(sampleRate, channels int) *Graph {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultPlaybackRate
	}
	if channels <= 0 {
		channels = audio.DefaultChannels
	}
	f := audio.Format{SampleRate: sampleRate, Channels: channels}
	return &Graph{
		format: f,
		conv:   audio.FormatConverter{Target: f},
	}
}

// Format returns the output format of the graph.
func (g *Graph) Format() audio.Format { return g.format }

// CurrentTime returns the graph clock in seconds: the number of frames
// rendered while running divided by the sample rate.
func (g *Graph) CurrentTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(g.frames) / float64(g.format.SampleRate)
}

// State returns the current run state.
func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resume starts the clock. Resuming a running graph is a no-op.
func (g *Graph) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return ErrClosed
	}
	g.state = StateRunning
	return nil
}

// Suspend halts the clock. Scheduled sources keep their start times.
func (g *Graph) Suspend() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return ErrClosed
	}
	g.state = StateSuspended
	return nil
}

// Close stops every source without firing ended callbacks and makes the graph
// render silence forever. Close is idempotent.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.sources {
		s.ended = true
	}
	g.sources = nil
	g.state = StateClosed
	return nil
}

// ActiveSources returns the number of sources that have not yet ended.
func (g *Graph) ActiveSources() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sources)
}

// Schedule converts buf to the graph format and plays it starting at when
// (graph seconds). A start time in the past plays immediately. onEnded, if
// non-nil, runs once after the source has been fully rendered; it is not
// called for sources that are stopped or discarded by Close.
func (g *Graph) Schedule(buf *audio.Buffer, when float64, onEnded func(*Source)) (*Source, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil, ErrClosed
	}

	data := g.conv.Convert(buf)
	start := int64(math.Round(when * float64(g.format.SampleRate)))
	if start < g.frames {
		start = g.frames
	}
	s := &Source{
		graph:      g,
		samples:    data.Samples,
		length:     int64(data.Frames()),
		startFrame: start,
		when:       when,
		rate:       float64(g.format.SampleRate),
		onEnded:    onEnded,
	}
	g.sources = append(g.sources, s)
	return s, nil
}

// Render fills out with the next len(out)/channels interleaved frames. When
// the graph is not running out is zeroed and the clock does not move. Ended
// callbacks run after the graph lock is released.
func (g *Graph) Render(out []float32) {
	clear(out)
	ch := g.format.Channels
	n := int64(len(out) / ch)

	g.mu.Lock()
	if g.state != StateRunning || n == 0 {
		g.mu.Unlock()
		return
	}

	from, to := g.frames, g.frames+n
	var finished []*Source
	kept := g.sources[:0]
	for _, s := range g.sources {
		s.mixInto(out, from, to, ch)
		if s.startFrame+s.length <= to {
			s.ended = true
			finished = append(finished, s)
			continue
		}
		kept = append(kept, s)
	}
	clear(g.sources[len(kept):])
	g.sources = kept
	g.frames = to
	g.mu.Unlock()

	for i, v := range out {
		out[i] = max(-1, min(1, v))
	}
	for _, s := range finished {
		if s.onEnded != nil {
			s.onEnded(s)
		}
	}
}

func (g *Graph) remove(s *Source) {
	for i, other := range g.sources {
		if other == s {
			g.sources = append(g.sources[:i], g.sources[i+1:]...)
			return
		}
	}
}
