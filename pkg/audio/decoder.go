package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidAudioData is returned when a payload holds no complete sample
// frame for the requested channel count.
var ErrInvalidAudioData = errors.New("audio: invalid audio data")

// Decode converts little-endian int16 PCM into a [Buffer]. Samples are scaled
// by 1/32768; multi-channel input is de-interleaved round-robin. A trailing
// partial frame is ignored.
func Decode(data []byte, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: rate %d, channels %d", ErrInvalidAudioData, sampleRate, channels)
	}
	perChannel := len(data) / 2 / channels
	if perChannel <= 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d channel(s)", ErrInvalidAudioData, len(data), channels)
	}

	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, perChannel)
	}
	for i := range perChannel * channels {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i%channels][i/channels] = float32(v) / 32768
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels, Samples: samples}, nil
}

// DecodePayload decodes a base64 payload into a buffer. The rate parameter of
// the payload's mime type overrides defaultRate when present.
func DecodePayload(p Payload, defaultRate, channels int) (*Buffer, error) {
	data, err := DecodeBytes(p.Data)
	if err != nil {
		return nil, err
	}
	return Decode(data, ParseRate(p.MIMEType, defaultRate), channels)
}
