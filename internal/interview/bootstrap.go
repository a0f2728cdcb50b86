package interview

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// DefaultBootstrapTemplate is the opening instruction sent to the model once
// the session is open. The model otherwise waits for the candidate to speak.
const DefaultBootstrapTemplate = `You are now interviewing a candidate for the position of {{.Role}}. ` +
	`Greet the candidate, briefly introduce yourself as the interviewer and ask your first question. ` +
	`Ask one question at a time and wait for the answer before continuing.`

// renderBootstrap executes tmpl with the job role. An empty tmpl uses
// [DefaultBootstrapTemplate].
func renderBootstrap(tmpl, role string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultBootstrapTemplate
	}
	t, err := template.New("bootstrap").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("interview: parse bootstrap template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ Role string }{Role: role}); err != nil {
		return "", fmt.Errorf("interview: render bootstrap template: %w", err)
	}
	return buf.String(), nil
}
