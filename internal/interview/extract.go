package interview

import (
	"github.com/MrWong99/mockmate/pkg/audio"
	"github.com/MrWong99/mockmate/pkg/live"
)

// defaultInboundMIME is assumed for top-level data payloads.
var defaultInboundMIME = audio.MIMEType(audio.DefaultPlaybackRate)

// extractor pulls an audio payload out of one message shape.
type extractor struct {
	name string
	fn   func(*live.Message) (audio.Payload, bool)
}

// extractors lists the inbound audio shapes in priority order. Only the first
// part of a model turn is inspected.
var extractors = []extractor{
	{name: "inlineData", fn: func(m *live.Message) (audio.Payload, bool) {
		p := firstPart(m)
		if p == nil || p.InlineData == nil || p.InlineData.Data == "" {
			return audio.Payload{}, false
		}
		return audio.Payload{Data: p.InlineData.Data, MIMEType: p.InlineData.MIMEType}, true
	}},
	{name: "audio", fn: func(m *live.Message) (audio.Payload, bool) {
		p := firstPart(m)
		if p == nil || p.Audio == nil || p.Audio.Data == "" {
			return audio.Payload{}, false
		}
		return audio.Payload{Data: p.Audio.Data, MIMEType: p.Audio.MIMEType}, true
	}},
	{name: "data", fn: func(m *live.Message) (audio.Payload, bool) {
		if m.Data == "" {
			return audio.Payload{}, false
		}
		return audio.Payload{Data: m.Data, MIMEType: defaultInboundMIME}, true
	}},
}

// ExtractAudio returns the first audio payload found in msg together with the
// name of the shape that matched. A matched payload without a mime type gets
// the default playback mime type.
func ExtractAudio(msg *live.Message) (audio.Payload, string, bool) {
	if msg == nil {
		return audio.Payload{}, "", false
	}
	for _, e := range extractors {
		if p, ok := e.fn(msg); ok {
			if p.MIMEType == "" {
				p.MIMEType = defaultInboundMIME
			}
			return p, e.name, true
		}
	}
	return audio.Payload{}, "", false
}

func firstPart(m *live.Message) *live.Part {
	sc := m.ServerContent
	if sc == nil || sc.ModelTurn == nil || len(sc.ModelTurn.Parts) == 0 {
		return nil
	}
	return &sc.ModelTurn.Parts[0]
}
