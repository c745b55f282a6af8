package output

import "encoding/json"

// JSONFormatter outputs a Result as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSONFormatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

type jsonResult struct {
	*Result
	DurationMs int64 `json:"duration_ms"`
}

// Format marshals the Result as indented JSON with a trailing newline.
func (f *JSONFormatter) Format(result *Result) ([]byte, error) {
	out, err := json.MarshalIndent(jsonResult{Result: result, DurationMs: result.Duration.Milliseconds()}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
