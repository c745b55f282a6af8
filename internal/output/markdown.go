package output

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter outputs a Result as human-readable Markdown.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format renders the Result as Markdown.
func (f *MarkdownFormatter) Format(result *Result) ([]byte, error) {
	var b strings.Builder

	if result.Subject != "" {
		fmt.Fprintf(&b, "# %s\n\n", result.Subject)
	}

	if result.Error != "" {
		b.WriteString("## Error\n\n")
		b.WriteString(result.Error)
		b.WriteString("\n")
		return []byte(b.String()), nil
	}

	if result.Body != "" {
		b.WriteString(strings.TrimRight(result.Body, "\n"))
		b.WriteString("\n")
	}

	if len(result.Fields) > 0 {
		if result.Body != "" {
			b.WriteString("\n")
		}
		b.WriteString("| Key | Value |\n|---|---|\n")
		for _, fld := range result.Fields {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(fld.Key), escapeCell(fld.Value))
		}
	}

	if result.Duration > 0 {
		fmt.Fprintf(&b, "\n---\n*%s completed in %s*\n",
			result.Command, result.Duration.Round(100*time.Millisecond))
	}

	return []byte(b.String()), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
