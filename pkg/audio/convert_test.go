package audio_test

import (
	"testing"

	"github.com/MrWong99/mockmate/pkg/audio"
)

func TestResample_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.Resample(in, 24000, 24000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
}

func TestResample_Upsample(t *testing.T) {
	out := audio.Resample([]float32{0, 1}, 24000, 48000)
	want := []float32{0, 0.5, 1, 1}
	if len(out) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	in := make([]float32, 480)
	out := audio.Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("length = %d, want 160", len(out))
	}
}

func TestResample_ZeroRate(t *testing.T) {
	in := []float32{0.5}
	if out := audio.Resample(in, 0, 48000); len(out) != 1 {
		t.Errorf("zero srcRate: length = %d, want input unchanged", len(out))
	}
	if out := audio.Resample(in, 48000, 0); len(out) != 1 {
		t.Errorf("zero dstRate: length = %d, want input unchanged", len(out))
	}
}

func TestRemix(t *testing.T) {
	mono := [][]float32{{0.5, -0.5}}
	stereo := audio.Remix(mono, 2)
	if len(stereo) != 2 || stereo[1][0] != 0.5 {
		t.Errorf("mono->stereo = %v, want duplicated channel", stereo)
	}

	down := audio.Remix([][]float32{{1, 0}, {0, 1}}, 1)
	if len(down) != 1 || down[0][0] != 0.5 || down[0][1] != 0.5 {
		t.Errorf("stereo->mono = %v, want averaged channel", down)
	}
}

func TestFormatConverter_NoOp(t *testing.T) {
	conv := audio.FormatConverter{Target: audio.Format{SampleRate: 24000, Channels: 1}}
	buf := &audio.Buffer{SampleRate: 24000, Channels: 1, Samples: [][]float32{{0.1}}}
	if got := conv.Convert(buf); got != buf {
		t.Error("expected matching buffer to be returned unchanged")
	}
}

func TestFormatConverter_FullConversion(t *testing.T) {
	conv := audio.FormatConverter{Target: audio.Format{SampleRate: 48000, Channels: 2}}
	buf := &audio.Buffer{SampleRate: 24000, Channels: 1, Samples: [][]float32{make([]float32, 240)}}
	got := conv.Convert(buf)
	if got.SampleRate != 48000 || got.Channels != 2 {
		t.Fatalf("format = %dHz/%dch, want 48000Hz/2ch", got.SampleRate, got.Channels)
	}
	if got.Frames() != 480 {
		t.Errorf("Frames() = %d, want 480", got.Frames())
	}
	if got.DurationSeconds() != buf.DurationSeconds() {
		t.Errorf("duration changed: %v -> %v", buf.DurationSeconds(), got.DurationSeconds())
	}
}
