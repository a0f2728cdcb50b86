// Package capture turns microphone blocks into outbound PCM packets.
//
// A [Pipeline] opens a [Device], encodes every block with the 16-bit codec and
// hands the packet to a [Sender] while the shared recording flag is set. The
// device callback never sees an error or panic from encoding or sending.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/mockmate/pkg/audio"
)

// Constraints are the requested capture parameters.
type Constraints struct {
	SampleRate int
	Channels   int

	// BlockSize is the number of frames per callback.
	BlockSize int

	// Processing hints. Backends apply them where the platform supports it.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool

	// DeviceID selects an input device by name. Empty means the default.
	DeviceID string
}

// DefaultConstraints returns 16 kHz mono capture with 512-frame blocks and
// all processing hints enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       audio.DefaultCaptureRate,
		Channels:         audio.DefaultChannels,
		BlockSize:        512,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// BlockFunc receives each captured block on the device thread.
type BlockFunc func(audio.Frame)

// Device opens a hardware input stream.
type Device interface {
	// Open starts capturing with c and calls fn for every block until the
	// returned stream is stopped. Open may block while the platform asks the
	// user for permission.
	Open(ctx context.Context, c Constraints, fn BlockFunc) (Stream, error)
}

// Stream is a running input stream.
type Stream interface {
	Stop() error
}

// Sender is the outbound side of a session.
type Sender interface {
	// Ready reports whether a live outbound channel exists.
	Ready() bool

	// SendAudio queues one packet. It must not block the device thread.
	SendAudio(pkt audio.PCMPacket) error
}

// Hooks are optional per-block observers, typically metrics.
type Hooks struct {
	OnBlock     func()
	OnSent      func()
	OnSendError func(error)
	OnFault     func(any)
}

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithHooks installs per-block observers.
func WithHooks(h Hooks) Option {
	return func(p *Pipeline) { p.hooks = h }
}

// Pipeline owns one capture stream.
type Pipeline struct {
	device    Device
	recording *atomic.Bool
	sender    Sender
	log       *slog.Logger
	hooks     Hooks

	mu      sync.Mutex
	stream  Stream
	stopped atomic.Bool
}

// New creates a pipeline that reads the recording flag from recording and
// delivers packets to sender.
func New(device Device, recording *atomic.Bool, sender Sender, opts ...Option) *Pipeline {
	p := &Pipeline{
		device:    device,
		recording: recording,
		sender:    sender,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start opens the device. Errors are classified with [Classify].
func (p *Pipeline) Start(ctx context.Context, c Constraints) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil || p.stopped.Load() {
		return ErrAlreadyStarted
	}
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultCaptureRate
	}
	if c.Channels <= 0 {
		c.Channels = audio.DefaultChannels
	}

	stream, err := p.device.Open(ctx, c, p.onBlock)
	if err != nil {
		return fmt.Errorf("capture: open device: %w", Classify(err))
	}
	p.stream = stream
	p.log.Info("capture started",
		"sample_rate", c.SampleRate,
		"channels", c.Channels,
		"block_size", c.BlockSize,
		"echo_cancellation", c.EchoCancellation,
		"noise_suppression", c.NoiseSuppression,
		"auto_gain_control", c.AutoGainControl,
	)
	return nil
}

// Active reports whether a hardware stream is open.
func (p *Pipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

// MonitorGain is the gain of any path from the capture stream to the output.
// Captured audio is only ever encoded and sent, so this is always zero.
func (p *Pipeline) MonitorGain() float64 { return 0 }

// Stop stops the hardware stream exactly once. Later calls return nil.
func (p *Pipeline) Stop() error {
	if p.stopped.Swap(true) {
		return nil
	}
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.mu.Unlock()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("capture: stop stream: %w", err)
	}
	p.log.Info("capture stopped")
	return nil
}

func (p *Pipeline) onBlock(f audio.Frame) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("capture callback panic", "panic", r)
			if p.hooks.OnFault != nil {
				p.hooks.OnFault(r)
			}
		}
	}()

	if p.hooks.OnBlock != nil {
		p.hooks.OnBlock()
	}
	if p.stopped.Load() || !p.recording.Load() || !p.sender.Ready() {
		return
	}

	rate := f.SampleRate
	if rate <= 0 {
		rate = audio.DefaultCaptureRate
	}
	if err := p.sender.SendAudio(audio.Encode(f.Samples, rate)); err != nil {
		p.log.Warn("capture send failed", "err", err)
		if p.hooks.OnSendError != nil {
			p.hooks.OnSendError(err)
		}
		return
	}
	if p.hooks.OnSent != nil {
		p.hooks.OnSent()
	}
}
