package interview

import (
	"strings"
	"testing"
)

func TestRenderBootstrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tmpl    string
		role    string
		want    string
		wantErr bool
	}{
		{name: "default template names role", role: "Site Reliability Engineer", want: "position of Site Reliability Engineer"},
		{name: "blank template uses default", tmpl: "   ", role: "Data Analyst", want: "Data Analyst"},
		{name: "custom template", tmpl: "Interview me for {{.Role}}.", role: "Go Developer", want: "Interview me for Go Developer."},
		{name: "parse error", tmpl: "{{.Role", role: "x", wantErr: true},
		{name: "unknown field", tmpl: "{{.Company}}", role: "x", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := renderBootstrap(tc.tmpl, tc.role)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("renderBootstrap: %v", err)
			}
			if !strings.Contains(got, tc.want) {
				t.Errorf("got %q, want it to contain %q", got, tc.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	for s, want := range map[State]string{
		StateIdle:       "idle",
		StateConnecting: "connecting",
		StateOpen:       "open",
		StateClosed:     "closed",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
