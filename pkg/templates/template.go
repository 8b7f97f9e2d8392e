package templates

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// placeholderRegex matches {{name}} markers, with optional inner whitespace.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Template is one renderable notification template.
type Template struct {
	ID                string   `yaml:"id"`
	Channel           string   `yaml:"channel"`
	Subject           string   `yaml:"subject"`
	Body              string   `yaml:"body"`
	RequiredVariables []string `yaml:"required_variables"`
}

// Validate checks that the template definition is usable.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTemplate)
	}
	if t.Channel == "" {
		return fmt.Errorf("%w: channel is required for template %q", ErrInvalidTemplate, t.ID)
	}
	if t.Body == "" {
		return fmt.Errorf("%w: body is required for template %q", ErrInvalidTemplate, t.ID)
	}
	return nil
}

// MissingVariables returns the required variables absent from data, sorted.
func (t Template) MissingVariables(data map[string]string) []string {
	var missing []string
	for _, name := range t.RequiredVariables {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// CheckVariables returns ErrMissingVariables naming any required variables
// absent from data.
func (t Template) CheckVariables(data map[string]string) error {
	if missing := t.MissingVariables(data); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingVariables, strings.Join(missing, ", "))
	}
	return nil
}

// Render substitutes placeholders in the subject and body from data.
// Placeholders without a matching key stay in the output unchanged.
func (t Template) Render(data map[string]string) (subject, body string) {
	return substitute(t.Subject, data), substitute(t.Body, data)
}

func substitute(text string, data map[string]string) string {
	if text == "" || len(data) == 0 {
		return text
	}
	return placeholderRegex.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderRegex.FindStringSubmatch(match)[1]
		if value, ok := data[name]; ok {
			return value
		}
		return match
	})
}
