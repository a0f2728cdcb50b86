package audio

import (
	"mime"
	"strconv"
)

// PCMMediaType is the base media type of raw 16-bit PCM payloads.
const PCMMediaType = "audio/pcm"

// MIMEType returns the wire mime type for PCM at the given rate,
// e.g. "audio/pcm;rate=16000".
func MIMEType(rate int) string {
	return PCMMediaType + ";rate=" + strconv.Itoa(rate)
}

// ParseRate extracts the rate parameter from a PCM mime type. It returns
// fallback when the type is empty, malformed or carries no usable rate.
func ParseRate(mimeType string, fallback int) int {
	if mimeType == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}
