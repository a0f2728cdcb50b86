// Package audio holds the sample-level building blocks of the interview audio
// engine: the 16-bit PCM codec used on the wire, the decoder that turns inbound
// payloads into playable buffers, and format conversion between streams.
package audio

import "time"

// Default stream formats. Captured audio is sent at 16 kHz mono; the remote
// model answers at 24 kHz mono.
const (
	DefaultCaptureRate  = 16000
	DefaultPlaybackRate = 24000
	DefaultChannels     = 1
)

// Frame is one fixed-size block of captured samples flowing from an input
// device to the encoder. Samples are floats in [-1, 1]; multi-channel blocks
// are interleaved.
type Frame struct {
	Samples []float32

	// SampleRate in Hz (e.g. 16000 for the capture leg).
	SampleRate int

	// Channels is the interleave width of Samples.
	Channels int

	// Timestamp marks when this block was captured, relative to stream start.
	Timestamp time.Duration
}

// PCMPacket is the outbound wire form of a captured block: base64 encoded
// little-endian int16 PCM plus its mime type.
type PCMPacket struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Payload is an inbound base64 audio payload extracted from a remote message.
// An empty MIMEType means the default playback format.
type Payload struct {
	Data     string
	MIMEType string
}

// Buffer is a decoded, channel-separated block of float samples ready for
// scheduling. Buffers are never mutated after creation.
type Buffer struct {
	SampleRate int
	Channels   int

	// Samples holds one slice per channel, all of equal length.
	Samples [][]float32
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// DurationSeconds returns the playback length of the buffer in seconds.
func (b *Buffer) DurationSeconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.DurationSeconds() * float64(time.Second))
}
