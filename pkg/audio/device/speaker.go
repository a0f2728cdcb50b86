package device

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/mockmate/pkg/audio/graph"
)

// Renderer produces interleaved output frames. [graph.Graph] implements it.
type Renderer interface {
	Render(out []float32)
}

var _ Renderer = (*graph.Graph)(nil)

// Speaker is a miniaudio playback device that pulls its samples from a
// Renderer, so the renderer's clock follows the hardware.
type Speaker struct {
	ctx  *malgo.AllocatedContext
	dev  *malgo.Device
	once sync.Once
	err  error
}

// OpenSpeaker starts a playback device at the given format. deviceName
// selects an output by name; empty means the default.
func OpenSpeaker(r Renderer, sampleRate, channels int, deviceName string, l *slog.Logger) (*Speaker, error) {
	if l == nil {
		l = slog.Default()
	}
	mctx, err := initContext(l)
	if err != nil {
		return nil, err
	}
	info, err := findDevice(mctx, malgo.Playback, deviceName)
	if err != nil {
		freeContext(mctx)
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	if info != nil {
		cfg.Playback.DeviceID = info.ID.Pointer()
	}

	var scratch []float32
	dev, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, frames uint32) {
			n := int(frames) * channels
			if cap(scratch) < n {
				scratch = make([]float32, n)
			}
			scratch = scratch[:n]
			r.Render(scratch)
			floatsToBytes(scratch, output)
		},
	})
	if err != nil {
		freeContext(mctx)
		return nil, fmt.Errorf("device: init playback: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		freeContext(mctx)
		return nil, fmt.Errorf("device: start playback: %w", err)
	}
	l.Info("speaker started", "sample_rate", sampleRate, "channels", channels)
	return &Speaker{ctx: mctx, dev: dev}, nil
}

// Close stops the device and releases the context. Close is idempotent.
func (s *Speaker) Close() error {
	s.once.Do(func() {
		if err := s.dev.Stop(); err != nil {
			s.err = fmt.Errorf("device: stop playback: %w", err)
		}
		s.dev.Uninit()
		freeContext(s.ctx)
	})
	return s.err
}
