package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/audio/capture"
)

// Microphone is a [capture.Device] backed by a miniaudio capture-only device.
// No playback path is ever opened from the input.
type Microphone struct {
	log *slog.Logger
}

var _ capture.Device = (*Microphone)(nil)

// NewMicrophone returns a microphone device. A nil logger uses slog.Default.
func NewMicrophone(l *slog.Logger) *Microphone {
	if l == nil {
		l = slog.Default()
	}
	return &Microphone{log: l}
}

// Open implements [capture.Device]. Blocks are delivered with exactly
// c.BlockSize frames regardless of the backend period size.
func (m *Microphone) Open(ctx context.Context, c capture.Constraints, fn capture.BlockFunc) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mctx, err := initContext(m.log)
	if err != nil {
		return nil, err
	}
	info, err := findDevice(mctx, malgo.Capture, c.DeviceID)
	if err != nil {
		freeContext(mctx)
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(c.Channels)
	cfg.SampleRate = uint32(c.SampleRate)
	if c.BlockSize > 0 {
		cfg.PeriodSizeInFrames = uint32(c.BlockSize)
	}
	if info != nil {
		cfg.Capture.DeviceID = info.ID.Pointer()
	}
	if c.EchoCancellation || c.NoiseSuppression || c.AutoGainControl {
		m.log.Debug("microphone processing hints are applied by the OS input chain",
			"echo_cancellation", c.EchoCancellation,
			"noise_suppression", c.NoiseSuppression,
			"auto_gain_control", c.AutoGainControl,
		)
	}

	blk := newBlocker(c, fn)
	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) { blk.push(input) },
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("device: init capture: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("device: start capture: %w", err)
	}
	return &micStream{ctx: mctx, dev: dev}, nil
}

type micStream struct {
	ctx  *malgo.AllocatedContext
	dev  *malgo.Device
	once sync.Once
	err  error
}

func (s *micStream) Stop() error {
	s.once.Do(func() {
		if err := s.dev.Stop(); err != nil {
			s.err = fmt.Errorf("device: stop capture: %w", err)
		}
		s.dev.Uninit()
		freeContext(s.ctx)
	})
	return s.err
}

// blocker re-chunks backend periods into fixed-size frames.
type blocker struct {
	fn       capture.BlockFunc
	rate     int
	channels int
	size     int // samples per block (frames * channels)

	scratch []float32
	pending []float32
	emitted int64
}

func newBlocker(c capture.Constraints, fn capture.BlockFunc) *blocker {
	frames := c.BlockSize
	if frames <= 0 {
		frames = 512
	}
	return &blocker{
		fn:       fn,
		rate:     c.SampleRate,
		channels: c.Channels,
		size:     frames * c.Channels,
	}
}

func (b *blocker) push(input []byte) {
	b.scratch = bytesToFloats(input, b.scratch)
	b.pending = append(b.pending, b.scratch...)
	for len(b.pending) >= b.size {
		samples := make([]float32, b.size)
		copy(samples, b.pending[:b.size])
		b.pending = append(b.pending[:0], b.pending[b.size:]...)

		frames := int64(b.size / b.channels)
		ts := time.Duration(b.emitted) * time.Second / time.Duration(b.rate)
		b.emitted += frames
		b.fn(audio.Frame{
			Samples:    samples,
			SampleRate: b.rate,
			Channels:   b.channels,
			Timestamp:  ts,
		})
	}
}
