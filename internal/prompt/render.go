// Package prompt renders the text prompts sent to the generation service.
//
// Templates use {name} placeholders. A literal brace is written doubled,
// {{ or }}, which keeps JSON examples inside templates readable. Rendering is
// strict: a placeholder without a value is an error, never a blank.
package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Errors returned by [Parse] and [Template.Execute].
var (
	ErrMissingField      = errors.New("prompt: missing field")
	ErrMalformedTemplate = errors.New("prompt: malformed template")
)

// Fields maps placeholder names to their values.
type Fields map[string]string

type segment struct {
	text  string
	field bool
}

// Template is a parsed prompt template.
type Template struct {
	name     string
	segments []segment
	fields   []string
}

// Parse validates text and returns a reusable [Template].
func Parse(name, text string) (*Template, error) {
	t := &Template{name: name}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: %s: unclosed '{' at offset %d", ErrMalformedTemplate, name, i)
			}
			field := text[i+1 : i+1+end]
			if field == "" || strings.ContainsAny(field, "{ \t\n") {
				return nil, fmt.Errorf("%w: %s: invalid placeholder %q at offset %d", ErrMalformedTemplate, name, field, i)
			}
			flush()
			t.segments = append(t.segments, segment{text: field, field: true})
			if !slices.Contains(t.fields, field) {
				t.fields = append(t.fields, field)
			}
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: %s: single '}' at offset %d", ErrMalformedTemplate, name, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

// MustParse is like [Parse] but panics on error. It is meant for templates
// compiled into the binary.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template's name.
func (t *Template) Name() string { return t.name }

// Fields returns the distinct placeholder names in order of first use.
func (t *Template) Fields() []string { return slices.Clone(t.fields) }

// Execute substitutes fields into the template. Every placeholder must have
// an entry in fields; extra entries are ignored.
func (t *Template) Execute(fields Fields) (string, error) {
	var missing []string
	for _, f := range t.fields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s: %s", ErrMissingField, t.name, strings.Join(missing, ", "))
	}

	var b strings.Builder
	for _, s := range t.segments {
		if s.field {
			b.WriteString(fields[s.text])
		} else {
			b.WriteString(s.text)
		}
	}
	return b.String(), nil
}

// Render parses text and executes it in one step.
func Render(text string, fields Fields) (string, error) {
	t, err := Parse("inline", text)
	if err != nil {
		return "", err
	}
	return t.Execute(fields)
}
