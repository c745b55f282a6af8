package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFormatterBasic(t *testing.T) {
	f := NewJSONFormatter()
	result := &Result{
		Command:  "summarize-repo",
		Subject:  "https://github.com/acme/widget",
		Body:     "A widget factory.",
		Duration: 1500 * time.Millisecond,
	}

	out, err := f.Format(result)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "summarize-repo", decoded["command"])
	assert.Equal(t, "A widget factory.", decoded["body"])
	assert.Equal(t, float64(1500), decoded["duration_ms"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "fields")
}

func TestJSONFormatterData(t *testing.T) {
	f := NewJSONFormatter()
	result := &Result{
		Command: "status",
		Data:    map[string]any{"status": "RUNNING"},
		Error:   "boom",
	}
	result.Add("id", "github.com_acme_widget")

	out, err := f.Format(result)
	require.NoError(t, err)

	var decoded struct {
		Data   map[string]string `json:"data"`
		Fields []Field           `json:"fields"`
		Error  string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "RUNNING", decoded.Data["status"])
	assert.Equal(t, []Field{{"id", "github.com_acme_widget"}}, decoded.Fields)
	assert.Equal(t, "boom", decoded.Error)
}
