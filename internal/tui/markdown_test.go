package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown(t *testing.T) {
	r, err := NewMarkdownRenderer("", 80)
	require.NoError(t, err)
	result, err := r.Render("SUMMARY: Renamed **parser** helpers")
	require.NoError(t, err)
	assert.NotEmpty(t, result)
	assert.Contains(t, result, "parser")
}

func TestRenderMarkdownTable(t *testing.T) {
	r, err := NewMarkdownRenderer("notty", 80)
	require.NoError(t, err)
	result, err := r.Render("| Key | Value |\n|---|---|\n| git | 2.43.0 |\n")
	require.NoError(t, err)
	assert.Contains(t, result, "2.43.0")
}

func TestRenderMarkdownEmpty(t *testing.T) {
	r, err := NewMarkdownRenderer("dark", 80)
	require.NoError(t, err)
	result, err := r.Render("")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestNilRendererPassesThrough(t *testing.T) {
	var r *MarkdownRenderer
	result, err := r.Render("# plain")
	require.NoError(t, err)
	assert.Equal(t, "# plain", result)
}

func TestTerminalRendererSkipsFiles(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	assert.Nil(t, TerminalRenderer(f))
}
