package playback_test

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/audio/graph"
	"github.com/MrWong99/mockmate/pkg/audio/playback"
)

const rate = 1000

// segment returns a mono buffer lasting ms milliseconds at the test rate.
func segment(ms int) *audio.Buffer {
	s := make([]float32, ms*rate/1000)
	for i := range s {
		s[i] = 0.1
	}
	return &audio.Buffer{SampleRate: rate, Channels: 1, Samples: [][]float32{s}}
}

func newScheduler(t *testing.T, opts ...playback.Option) (*playback.Scheduler, *graph.Graph) {
	t.Helper()
	g := graph.New(rate, 1)
	if err := g.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	return playback.New(g, opts...), g
}

// advance renders ms milliseconds of output.
func advance(g *graph.Graph, ms int) {
	g.Render(make([]float32, ms*rate/1000))
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEnqueue_Contiguous(t *testing.T) {
	t.Parallel()
	s, _ := newScheduler(t)

	durations := []int{120, 40, 300, 5}
	var sources []*graph.Source
	for _, d := range durations {
		src, err := s.Enqueue(segment(d))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		sources = append(sources, src)
	}
	for i := 1; i < len(sources); i++ {
		prev := sources[i-1]
		want := prev.StartTime() + prev.Duration()
		if !almostEqual(sources[i].StartTime(), want) {
			t.Errorf("segment %d starts at %v, want %v (end of previous)", i, sources[i].StartTime(), want)
		}
	}
	if !almostEqual(s.NextStartTime(), 0.465) {
		t.Errorf("NextStartTime() = %v, want 0.465", s.NextStartTime())
	}
}

func TestEnqueue_ResampledSegmentsAreGapless(t *testing.T) {
	t.Parallel()
	s, g := newScheduler(t)

	// 7 frames at 441 Hz resample to 15 graph frames (15.87 at the source rate).
	samples := []float32{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	var prev *graph.Source
	for i := range 3 {
		src, err := s.Enqueue(&audio.Buffer{SampleRate: 441, Channels: 1, Samples: [][]float32{samples}})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if prev != nil && src.StartTime() != prev.EndTime() {
			t.Errorf("segment %d starts at %v, previous ends at %v", i, src.StartTime(), prev.EndTime())
		}
		prev = src
	}
	if got, want := s.NextStartTime(), 45.0/rate; got != want {
		t.Errorf("NextStartTime() = %v, want %v", got, want)
	}

	out := make([]float32, 46)
	g.Render(out)
	for i, v := range out[:45] {
		if math.Abs(float64(v)-0.1) > 1e-6 {
			t.Fatalf("frame %d = %v, want 0.1 (gap or overlap at a segment boundary)", i, v)
		}
	}
	if out[45] != 0 {
		t.Errorf("frame 45 = %v, want silence after the last segment", out[45])
	}
}

func TestEnqueue_ClampsToClockAfterDrain(t *testing.T) {
	t.Parallel()
	s, g := newScheduler(t)

	if _, err := s.Enqueue(segment(100)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	advance(g, 500)

	src, err := s.Enqueue(segment(100))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !almostEqual(src.StartTime(), 0.5) {
		t.Errorf("StartTime() = %v, want clock time 0.5", src.StartTime())
	}
}

func TestSpeaking_FollowsActiveSet(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var changes []bool
	s, g := newScheduler(t, playback.WithSpeakingChange(func(v bool) {
		mu.Lock()
		changes = append(changes, v)
		mu.Unlock()
	}))

	if s.Speaking() {
		t.Fatal("Speaking() = true before any enqueue")
	}
	if _, err := s.Enqueue(segment(50)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := s.Enqueue(segment(50)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !s.Speaking() || s.ActiveCount() != 2 {
		t.Fatalf("Speaking()=%v ActiveCount()=%d, want true/2", s.Speaking(), s.ActiveCount())
	}

	advance(g, 50)
	if !s.Speaking() || s.ActiveCount() != 1 {
		t.Fatalf("after first ends: Speaking()=%v ActiveCount()=%d, want true/1", s.Speaking(), s.ActiveCount())
	}
	advance(g, 50)
	if s.Speaking() || s.ActiveCount() != 0 {
		t.Fatalf("after drain: Speaking()=%v ActiveCount()=%d, want false/0", s.Speaking(), s.ActiveCount())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("speaking changes = %v, want [true false]", changes)
	}
}

func TestSpeakingChange_LastValueMatchesState(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		last bool
		got  int
	)
	s, _ := newScheduler(t, playback.WithSpeakingChange(func(v bool) {
		mu.Lock()
		last = v
		got++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if i%2 == 0 {
					_, _ = s.Enqueue(segment(10))
				} else {
					s.Interrupt()
				}
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if got == 0 {
		t.Fatal("no speaking changes delivered")
	}
	if last != s.Speaking() {
		t.Errorf("last delivered speaking = %v, scheduler reports %v", last, s.Speaking())
	}
}

func TestInterrupt_ResetsState(t *testing.T) {
	t.Parallel()
	s, g := newScheduler(t)

	var sources []*graph.Source
	for range 3 {
		src, err := s.Enqueue(segment(200))
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		sources = append(sources, src)
	}
	advance(g, 100)

	s.Interrupt()

	if s.Speaking() {
		t.Error("Speaking() = true after Interrupt")
	}
	if s.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", s.ActiveCount())
	}
	if s.NextStartTime() != 0 {
		t.Errorf("NextStartTime() = %v, want 0", s.NextStartTime())
	}
	for i, src := range sources {
		if !src.Ended() {
			t.Errorf("source %d still active after Interrupt", i)
		}
	}

	out := make([]float32, 100)
	g.Render(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("frame %d = %v after Interrupt, want silence", i, v)
		}
	}
}

func TestInterrupt_NextEnqueueStartsAtClock(t *testing.T) {
	t.Parallel()
	s, g := newScheduler(t)
	if _, err := s.Enqueue(segment(1000)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	advance(g, 250)
	s.Interrupt()

	src, err := s.Enqueue(segment(100))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if src.StartTime() < g.CurrentTime() {
		t.Errorf("StartTime() = %v is before clock %v", src.StartTime(), g.CurrentTime())
	}
	if !almostEqual(src.StartTime(), 0.25) {
		t.Errorf("StartTime() = %v, want 0.25", src.StartTime())
	}
}

func TestInterrupt_Idempotent(t *testing.T) {
	t.Parallel()
	s, _ := newScheduler(t)
	s.Interrupt()
	if _, err := s.Enqueue(segment(10)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	s.Interrupt()
	s.Interrupt()
	if s.Speaking() || s.ActiveCount() != 0 || s.NextStartTime() != 0 {
		t.Errorf("state after repeated Interrupt: speaking=%v active=%d next=%v",
			s.Speaking(), s.ActiveCount(), s.NextStartTime())
	}
}

func TestNaturalEndAndInterrupt_Converge(t *testing.T) {
	t.Parallel()
	drained, g1 := newScheduler(t)
	if _, err := drained.Enqueue(segment(20)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	advance(g1, 20)

	interrupted, _ := newScheduler(t)
	if _, err := interrupted.Enqueue(segment(20)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	interrupted.Interrupt()

	if drained.Speaking() != interrupted.Speaking() || drained.ActiveCount() != interrupted.ActiveCount() {
		t.Errorf("drained (speaking=%v active=%d) != interrupted (speaking=%v active=%d)",
			drained.Speaking(), drained.ActiveCount(), interrupted.Speaking(), interrupted.ActiveCount())
	}
}

func TestEnqueue_ClosedGraph(t *testing.T) {
	t.Parallel()
	s, g := newScheduler(t)
	_ = g.Close()
	if _, err := s.Enqueue(segment(10)); err == nil {
		t.Fatal("expected error enqueuing onto a closed graph")
	}
	if s.Speaking() {
		t.Error("Speaking() = true after failed enqueue")
	}
}

func TestActiveChange_Balances(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	total := 0
	s, g := newScheduler(t, playback.WithActiveChange(func(d int) {
		mu.Lock()
		total += d
		mu.Unlock()
	}))

	for range 3 {
		if _, err := s.Enqueue(segment(10)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	advance(g, 10)
	mu.Lock()
	if total != 2 {
		t.Errorf("active total after one end = %d, want 2", total)
	}
	mu.Unlock()

	s.Interrupt()
	mu.Lock()
	defer mu.Unlock()
	if total != 0 {
		t.Errorf("active total after interrupt = %d, want 0", total)
	}
}
