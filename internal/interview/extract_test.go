package interview

import (
	"testing"

	"github.com/MrWong99/mockmate/pkg/live"
)

func turnWith(parts ...live.Part) *live.Message {
	return &live.Message{ServerContent: &live.ServerContent{ModelTurn: &live.ModelTurn{Parts: parts}}}
}

func TestExtractAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		msg       *live.Message
		wantOK    bool
		wantData  string
		wantMIME  string
		wantShape string
	}{
		{
			name: "nil message",
			msg:  nil,
		},
		{
			name: "empty message",
			msg:  &live.Message{},
		},
		{
			name:      "inline data",
			msg:       turnWith(live.Part{InlineData: &live.Blob{Data: "AAA=", MIMEType: "audio/pcm;rate=16000"}}),
			wantOK:    true,
			wantData:  "AAA=",
			wantMIME:  "audio/pcm;rate=16000",
			wantShape: "inlineData",
		},
		{
			name:      "audio part",
			msg:       turnWith(live.Part{Audio: &live.Blob{Data: "BBB="}}),
			wantOK:    true,
			wantData:  "BBB=",
			wantMIME:  "audio/pcm;rate=24000",
			wantShape: "audio",
		},
		{
			name:      "top-level data",
			msg:       &live.Message{Data: "CCC="},
			wantOK:    true,
			wantData:  "CCC=",
			wantMIME:  "audio/pcm;rate=24000",
			wantShape: "data",
		},
		{
			name: "inline data wins over audio and data",
			msg: func() *live.Message {
				m := turnWith(live.Part{
					InlineData: &live.Blob{Data: "inline", MIMEType: "audio/pcm;rate=24000"},
					Audio:      &live.Blob{Data: "audio"},
				})
				m.Data = "data"
				return m
			}(),
			wantOK:    true,
			wantData:  "inline",
			wantMIME:  "audio/pcm;rate=24000",
			wantShape: "inlineData",
		},
		{
			name: "audio wins over data",
			msg: func() *live.Message {
				m := turnWith(live.Part{Audio: &live.Blob{Data: "audio", MIMEType: "audio/pcm;rate=22050"}})
				m.Data = "data"
				return m
			}(),
			wantOK:    true,
			wantData:  "audio",
			wantMIME:  "audio/pcm;rate=22050",
			wantShape: "audio",
		},
		{
			name: "only first part inspected",
			msg: turnWith(
				live.Part{Text: "hello"},
				live.Part{InlineData: &live.Blob{Data: "ignored"}},
			),
		},
		{
			name: "empty inline data falls through to data",
			msg: func() *live.Message {
				m := turnWith(live.Part{InlineData: &live.Blob{}})
				m.Data = "data"
				return m
			}(),
			wantOK:    true,
			wantData:  "data",
			wantMIME:  "audio/pcm;rate=24000",
			wantShape: "data",
		},
		{
			name: "text only",
			msg:  turnWith(live.Part{Text: "question one"}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, shape, ok := ExtractAudio(tc.msg)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if p.Data != tc.wantData {
				t.Errorf("Data = %q, want %q", p.Data, tc.wantData)
			}
			if p.MIMEType != tc.wantMIME {
				t.Errorf("MIMEType = %q, want %q", p.MIMEType, tc.wantMIME)
			}
			if shape != tc.wantShape {
				t.Errorf("shape = %q, want %q", shape, tc.wantShape)
			}
		})
	}
}

func TestPartText(t *testing.T) {
	t.Parallel()
	if got := partText(turnWith(live.Part{Text: "Tell me about yourself."})); got != "Tell me about yourself." {
		t.Errorf("partText = %q", got)
	}
	if got := partText(&live.Message{Data: "AAA="}); got != "" {
		t.Errorf("partText without turn = %q, want empty", got)
	}
}
