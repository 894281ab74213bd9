package util

import (
	"bytes"
	"io"
	"strings"
	"text/template"
)

// Fields available to bot message templates.
const (
	FieldUser = "user"
	FieldMode = "mode"
)

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// RenderTemplate expands a configured bot message such as
// "Hi {{.user}}, what's up?" with the given data. Referencing a field that
// is not in data is an error.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateTemplate reports whether text parses as a message template and
// only references the given fields.
func ValidateTemplate(text string, fields ...string) error {
	if !strings.Contains(text, "{{") {
		return nil
	}
	tmpl, err := parse(text)
	if err != nil {
		return err
	}

	sample := make(map[string]any, len(fields))
	for _, f := range fields {
		sample[f] = f
	}
	return tmpl.Execute(io.Discard, sample)
}

func parse(text string) (*template.Template, error) {
	return template.New("message").Option("missingkey=error").Funcs(funcs).Parse(text)
}
