package output

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Result holds the outcome of one CLI command.
type Result struct {
	Command  string        `json:"command" yaml:"command"`
	Subject  string        `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body     string        `json:"body,omitempty" yaml:"body,omitempty"`
	Fields   []Field       `json:"fields,omitempty" yaml:"fields,omitempty"`
	Data     any           `json:"data,omitempty" yaml:"data,omitempty"`
	Duration time.Duration `json:"-" yaml:"-"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Field is a labelled value shown alongside the body.
type Field struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Add appends a field and returns r for chaining.
func (r *Result) Add(key, value string) *Result {
	r.Fields = append(r.Fields, Field{Key: key, Value: value})
	return r
}

// Formatter formats a Result into output bytes.
type Formatter interface {
	Format(result *Result) ([]byte, error)
}

// Formats lists the names accepted by New.
func Formats() []string {
	return []string{"markdown", "json", "yaml"}
}

// New returns the formatter for name. An empty name selects markdown.
func New(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md":
		return NewMarkdownFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "yaml", "yml":
		return NewYAMLFormatter(), nil
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, name, strings.Join(Formats(), ", "))
}
