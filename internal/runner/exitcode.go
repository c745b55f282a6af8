package runner

import (
	"errors"
	"fmt"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/toolcheck"
)

// Exit codes used by the CLI.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitIncomplete = 2
)

// ExitError is returned when a command should exit with a non-zero code.
// Using a typed error instead of os.Exit ensures deferred cleanup runs.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ExitCodeFromStatus returns 0 for a completed analysis, 1 for a failed one
// and 2 while it is still pending or running.
func ExitCodeFromStatus(s analysis.Status) int {
	switch s {
	case analysis.StatusCompleted:
		return ExitOK
	case analysis.StatusFailed:
		return ExitFailure
	}
	return ExitIncomplete
}

// ExitCodeFromTools returns 1 if a required tool is missing or too old.
func ExitCodeFromTools(statuses []toolcheck.Status) int {
	if toolcheck.Ready(statuses) {
		return ExitOK
	}
	return ExitFailure
}
