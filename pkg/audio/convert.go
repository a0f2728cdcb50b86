package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FormatConverter converts decoded buffers to a target format. It logs a
// warning on the first format mismatch. Create one per output stream.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert converts buf to the target format. If the buffer already matches,
// it is returned unchanged (zero allocation). Conversion order: resample
// first, then channel convert.
func (c *FormatConverter) Convert(buf *Buffer) *Buffer {
	if buf == nil || (buf.SampleRate == c.Target.SampleRate && buf.Channels == c.Target.Channels) {
		return buf
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(buf.SampleRate, buf.Channels),
			"to", c.Target.String(),
		)
	})

	samples := buf.Samples
	rate := buf.SampleRate

	// Step 1: Resample first (avoids resampling stereo when target is mono).
	if rate != c.Target.SampleRate && c.Target.SampleRate > 0 {
		resampled := make([][]float32, len(samples))
		for ch, s := range samples {
			resampled[ch] = Resample(s, rate, c.Target.SampleRate)
		}
		samples = resampled
		rate = c.Target.SampleRate
	}

	// Step 2: Channel conversion.
	if c.Target.Channels > 0 && len(samples) != c.Target.Channels {
		samples = Remix(samples, c.Target.Channels)
	}

	return &Buffer{SampleRate: rate, Channels: len(samples), Samples: samples}
}

// Remix maps channel slices onto dst channels. Mono is duplicated, a downmix
// to mono averages all channels, and any other layout wraps channel indexes.
func Remix(samples [][]float32, dst int) [][]float32 {
	src := len(samples)
	if src == 0 || dst <= 0 || src == dst {
		return samples
	}
	out := make([][]float32, dst)
	switch {
	case src == 1:
		for ch := range out {
			out[ch] = samples[0]
		}
	case dst == 1:
		n := len(samples[0])
		mono := make([]float32, n)
		for i := range n {
			var sum float32
			for _, s := range samples {
				sum += s[i]
			}
			mono[i] = sum / float32(src)
		}
		out[0] = mono
	default:
		for ch := range out {
			out[ch] = samples[ch%src]
		}
	}
	return out
}

// Resample converts one channel of float samples from srcRate to dstRate
// using linear interpolation. If the rates match or are invalid, the input is
// returned unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstSamples := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

func formatString(sampleRate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", sampleRate, ch)
}
