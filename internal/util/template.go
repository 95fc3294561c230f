package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate resolves {{placeholders}} in prompt text using Go's
// text/template package. Text without template markers is returned verbatim.
func RenderTemplate(text string, vars map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}

	return buf.String(), nil
}
