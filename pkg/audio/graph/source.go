package graph

// Source is one scheduled buffer in a [Graph].
type Source struct {
	graph      *Graph
	samples    [][]float32
	length     int64
	startFrame int64
	when       float64
	rate       float64
	onEnded    func(*Source)

	// guarded by graph.mu
	ended bool
}

// StartTime returns the requested start time in graph seconds.
func (s *Source) StartTime() float64 { return s.when }

// Duration returns the rendered length in seconds, measured in whole graph
// frames after conversion to the graph rate.
func (s *Source) Duration() float64 { return float64(s.length) / s.rate }

// EndTime returns the graph time of the first frame after the source. A
// buffer scheduled at EndTime follows this one without a gap or overlap.
func (s *Source) EndTime() float64 { return float64(s.startFrame+s.length) / s.rate }

// Ended reports whether the source finished, was stopped or was discarded.
func (s *Source) Ended() bool {
	s.graph.mu.Lock()
	defer s.graph.mu.Unlock()
	return s.ended
}

// Stop silences the source immediately. The ended callback is not invoked.
// Stop is idempotent.
func (s *Source) Stop() {
	s.graph.mu.Lock()
	defer s.graph.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.graph.remove(s)
}

// mixInto adds the part of the source that overlaps [from, to) into out.
func (s *Source) mixInto(out []float32, from, to int64, channels int) {
	lo := max(from, s.startFrame)
	hi := min(to, s.startFrame+s.length)
	for f := lo; f < hi; f++ {
		src := f - s.startFrame
		base := int(f-from) * channels
		for c := range channels {
			if c < len(s.samples) {
				out[base+c] += s.samples[c][src]
			}
		}
	}
}
