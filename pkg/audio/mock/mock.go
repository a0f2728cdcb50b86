// Package mock provides in-memory mock implementations of the capture
// [capture.Device], [capture.Stream] and [capture.Sender] interfaces for use
// in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	dev := &mock.Device{}
//	p := capture.New(dev, &recording, sender)
//	_ = p.Start(ctx, capture.DefaultConstraints())
//	dev.Emit(audio.Frame{Samples: make([]float32, 512), SampleRate: 16000})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/audio/capture"
)

// ─── Device ───────────────────────────────────────────────────────────────────

// Device is a mock implementation of [capture.Device].
type Device struct {
	mu sync.Mutex

	// OpenErr is returned by [Device.Open] when non-nil.
	OpenErr error

	// OpenGate, when non-nil, makes Open block until it is closed or ctx is
	// done. It simulates a pending permission prompt.
	OpenGate chan struct{}

	// StopErr is returned by the stream's Stop.
	StopErr error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int

	// Constraints records the constraints of the last Open call.
	Constraints capture.Constraints

	// Streams holds every stream returned by Open, in order.
	Streams []*Stream

	fn capture.BlockFunc
}

// Open implements [capture.Device].
func (d *Device) Open(ctx context.Context, c capture.Constraints, fn capture.BlockFunc) (capture.Stream, error) {
	d.mu.Lock()
	d.CallCountOpen++
	d.Constraints = c
	gate := d.OpenGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &Stream{StopErr: d.StopErr}
	d.Streams = append(d.Streams, s)
	d.fn = fn
	return s, nil
}

// Emit delivers f to the block callback registered by the last Open, as the
// hardware thread would. It is a no-op before Open.
func (d *Device) Emit(f audio.Frame) {
	d.mu.Lock()
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [capture.Stream].
type Stream struct {
	mu sync.Mutex

	// StopErr is returned by [Stream.Stop].
	StopErr error

	// CallCountStop records how many times Stop was called.
	CallCountStop int
}

// Stop implements [capture.Stream].
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountStop++
	return s.StopErr
}

// Stops returns CallCountStop under the lock.
func (s *Stream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountStop
}

// ─── Sender ───────────────────────────────────────────────────────────────────

// Sender is a mock implementation of [capture.Sender].
type Sender struct {
	mu sync.Mutex

	// NotReady makes Ready return false.
	NotReady bool

	// SendErr is returned by [Sender.SendAudio] when non-nil.
	SendErr error

	// PanicWith, when non-nil, makes SendAudio panic with this value.
	PanicWith any

	// Packets records every packet passed to SendAudio without error.
	Packets []audio.PCMPacket
}

// Ready implements [capture.Sender].
func (s *Sender) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.NotReady
}

// SendAudio implements [capture.Sender].
func (s *Sender) SendAudio(pkt audio.PCMPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PanicWith != nil {
		panic(s.PanicWith)
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	s.Packets = append(s.Packets, pkt)
	return nil
}

// Sent returns a copy of the recorded packets.
func (s *Sender) Sent() []audio.PCMPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.PCMPacket(nil), s.Packets...)
}
