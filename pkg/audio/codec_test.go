package audio_test

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/mockmate/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestEncode_MIMEAndLength(t *testing.T) {
	t.Parallel()
	samples := make([]float32, 512)
	pkt := audio.Encode(samples, 16000)

	if pkt.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q, want audio/pcm;rate=16000", pkt.MIMEType)
	}
	raw, err := base64.StdEncoding.DecodeString(pkt.Data)
	if err != nil {
		t.Fatalf("packet data is not standard base64: %v", err)
	}
	if len(raw) != 1024 {
		t.Errorf("decoded length = %d, want 1024", len(raw))
	}
}

func TestEncodePCM16_Quantization(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{1.5, 32767},
		{-2, -32768},
		{0.5, 16384},
		{-0.5, -16384},
		{1.0 / 32768, 1},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		got := bytesToSamples(audio.EncodePCM16([]float32{tt.in}))[0]
		if got != tt.want {
			t.Errorf("EncodePCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncode_NeverExceedsInt16Range(t *testing.T) {
	t.Parallel()
	samples := []float32{-100, -1.0001, -1, 1, 1.0001, 100, float32(math.Inf(1)), float32(math.Inf(-1))}
	for i, s := range bytesToSamples(audio.EncodePCM16(samples)) {
		if s != math.MaxInt16 && s != math.MinInt16 {
			t.Errorf("sample %d (%v) = %d, want a saturated extreme", i, samples[i], s)
		}
	}
}

func TestEncodeDecode_RoundTripWithinOneStep(t *testing.T) {
	t.Parallel()
	const step = 1.0 / 32768
	var samples []float32
	for i := -1000; i <= 1000; i++ {
		samples = append(samples, float32(i)/1000)
	}
	samples = append(samples, 0.9, -0.9, 0.123456, -0.999999, 0.999999)

	pkt := audio.Encode(samples, 16000)
	raw, err := audio.DecodeBytes(pkt.Data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	buf, err := audio.Decode(raw, 16000, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, want := range samples {
		got := buf.Samples[0][i]
		if d := math.Abs(float64(got) - float64(want)); d > step+1e-9 {
			t.Errorf("sample %d: round trip %v -> %v, error %g exceeds one step", i, want, got, d)
		}
	}
}

func TestEncode_NoDCBias(t *testing.T) {
	t.Parallel()
	// A symmetric ramp must encode to a symmetric set of codes.
	var samples []float32
	for i := 1; i <= 500; i++ {
		v := float32(i) / 501
		samples = append(samples, v, -v)
	}
	var sum int64
	for _, s := range bytesToSamples(audio.EncodePCM16(samples)) {
		sum += int64(s)
	}
	if sum != 0 {
		t.Errorf("sum of symmetric ramp codes = %d, want 0", sum)
	}
}

func TestDecodeBytes_InvalidBase64(t *testing.T) {
	t.Parallel()
	_, err := audio.DecodeBytes("!!not base64!!")
	if !errors.Is(err, audio.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	var de *audio.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, want *DecodeError", err)
	}
}

func TestDecodeBytes_Empty(t *testing.T) {
	t.Parallel()
	b, err := audio.DecodeBytes("")
	if err != nil {
		t.Fatalf("DecodeBytes(\"\"): %v", err)
	}
	if len(b) != 0 {
		t.Errorf("len = %d, want 0", len(b))
	}
}

func TestParseRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mime string
		want int
	}{
		{"audio/pcm;rate=24000", 24000},
		{"audio/pcm; rate=16000", 16000},
		{"audio/pcm", 24000},
		{"", 24000},
		{"audio/pcm;rate=abc", 24000},
		{"audio/pcm;rate=-5", 24000},
		{";;;", 24000},
	}
	for _, tt := range tests {
		if got := audio.ParseRate(tt.mime, 24000); got != tt.want {
			t.Errorf("ParseRate(%q) = %d, want %d", tt.mime, got, tt.want)
		}
	}
}
