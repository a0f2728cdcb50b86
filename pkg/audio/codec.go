package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
)

// ErrDecode is matched (via errors.Is) by every base64 decoding failure.
var ErrDecode = errors.New("audio: invalid base64 payload")

// DecodeError wraps the underlying base64 error of a failed [DecodeBytes].
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "audio: decode base64: " + e.Err.Error()
}

// Unwrap exposes both [ErrDecode] and the base64 cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// Encode converts float samples to a base64 PCM packet tagged with rate.
//
// Each sample is clamped to [-1, 1], scaled by 32768, rounded half away from
// zero and saturated at the int16 range, so +1.0 becomes 32767 and -1.0
// becomes -32768. Using the decoder's own scale keeps Decode(Encode(x))
// within one quantization step of x with no DC offset.
func Encode(samples []float32, rate int) PCMPacket {
	return PCMPacket{
		Data:     base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
		MIMEType: MIMEType(rate),
	}
}

// EncodePCM16 returns the little-endian int16 representation of samples.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(quantize(s)))
	}
	return out
}

func quantize(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	q := math.Round(v * 32768)
	if q > math.MaxInt16 {
		return math.MaxInt16
	}
	if q < math.MinInt16 {
		return math.MinInt16
	}
	return int16(q)
}

// DecodeBytes decodes a standard base64 string. Failures match [ErrDecode].
func DecodeBytes(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return data, nil
}
