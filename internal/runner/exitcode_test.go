package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/toolcheck"
)

func TestExitCodeFromStatus(t *testing.T) {
	assert.Equal(t, 0, ExitCodeFromStatus(analysis.StatusCompleted))
	assert.Equal(t, 1, ExitCodeFromStatus(analysis.StatusFailed))
	assert.Equal(t, 2, ExitCodeFromStatus(analysis.StatusRunning))
	assert.Equal(t, 2, ExitCodeFromStatus(analysis.StatusPending))
	assert.Equal(t, 2, ExitCodeFromStatus(""))
}

func TestExitCodeFromTools(t *testing.T) {
	ready := []toolcheck.Status{
		{Name: "git", Found: true, OK: true},
		{Name: "chrome", Optional: true},
	}
	assert.Equal(t, 0, ExitCodeFromTools(ready))

	missing := append(ready, toolcheck.Status{Name: "und"})
	assert.Equal(t, 1, ExitCodeFromTools(missing))
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 1}
	assert.Equal(t, "exit code 1", err.Error())

	// Verify errors.As works for type matching.
	var exitErr *ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
}

func TestExitErrorWraps(t *testing.T) {
	cause := errors.New("clone failed")
	err := fmt.Errorf("analyze: %w", &ExitError{Code: 2, Err: cause})

	assert.Equal(t, "analyze: clone failed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, ExitCode(err))
	assert.Equal(t, 1, ExitCode(cause))
	assert.Equal(t, 0, ExitCode(nil))
}
