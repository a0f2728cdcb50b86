// Package device binds the capture pipeline and the playback graph to real
// audio hardware through miniaudio (github.com/gen2brain/malgo).
package device

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
)

// initContext allocates a miniaudio context whose backend log lines go to l
// at debug level.
func initContext(l *slog.Logger) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		l.Debug("miniaudio", "msg", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("device: init context: %w", err)
	}
	return ctx, nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// findDevice resolves a device by exact or case-insensitive name. An empty
// name selects the backend default and returns nil.
func findDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("device: list devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("device: no device available")
	}
	if name == "" {
		return nil, nil
	}
	for i := range infos {
		if strings.EqualFold(infos[i].Name(), name) {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("device: %q not found", name)
}

// bytesToFloats decodes little-endian float32 samples.
func bytesToFloats(b []byte, out []float32) []float32 {
	n := len(b) / 4
	out = out[:0]
	for i := range n {
		out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out
}

// floatsToBytes encodes float32 samples little-endian into b.
func floatsToBytes(in []float32, b []byte) {
	for i, v := range in {
		if (i+1)*4 > len(b) {
			return
		}
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
}
