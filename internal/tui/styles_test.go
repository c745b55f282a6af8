package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/toolcheck"
)

func TestStatusBadge(t *testing.T) {
	for _, s := range []analysis.Status{
		analysis.StatusPending, analysis.StatusRunning, analysis.StatusCompleted, analysis.StatusFailed,
	} {
		assert.Contains(t, StatusBadge(s), string(s))
	}
	assert.Contains(t, StatusBadge(""), "UNKNOWN")
}

func TestJobLine(t *testing.T) {
	line := JobLine(analysis.JobStatus{Status: analysis.StatusRunning, Message: "Analyzing commits..."})
	assert.Contains(t, line, "RUNNING")
	assert.Contains(t, line, "Analyzing commits...")
}

func TestToolLine(t *testing.T) {
	line := ToolLine(toolcheck.Status{Name: "git", Path: "/usr/bin/git", Version: "2.43.0", Found: true, OK: true})
	assert.Contains(t, line, "✓")
	assert.Contains(t, line, "2.43.0")
	assert.Contains(t, line, "/usr/bin/git")

	line = ToolLine(toolcheck.Status{Name: "und", Message: "not found on PATH"})
	assert.Contains(t, line, "✗")
	assert.Contains(t, line, "not found on PATH")

	line = ToolLine(toolcheck.Status{Name: "chrome", Optional: true, Message: "not found on PATH"})
	assert.Contains(t, line, "-")
}
