package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/julianshen/commitpro/internal/output"
)

// Action performs one command and describes its outcome. It may return a
// partial Result together with an error.
type Action func(ctx context.Context) (*output.Result, error)

// RenderFunc post-processes formatted output, e.g. to style markdown for a
// terminal.
type RenderFunc func(string) (string, error)

// CommandRunner executes an Action, formats its Result and writes it out.
type CommandRunner struct {
	formatter output.Formatter
	out       io.Writer
	render    RenderFunc
}

// NewCommandRunner creates a CommandRunner writing to out.
func NewCommandRunner(f output.Formatter, out io.Writer) *CommandRunner {
	return &CommandRunner{formatter: f, out: out}
}

// WithRenderer sets a renderer applied to the formatted output.
func (r *CommandRunner) WithRenderer(fn RenderFunc) *CommandRunner {
	r.render = fn
	return r
}

// Run executes action and prints its Result. An action error is recorded in
// the Result and returned as an *ExitError.
func (r *CommandRunner) Run(ctx context.Context, command string, action Action) error {
	start := time.Now()
	result, err := action(ctx)
	if result == nil {
		result = &output.Result{}
	}
	result.Command = command
	result.Duration = time.Since(start)

	var exitErr *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.Err == nil:
	default:
		result.Error = err.Error()
	}

	out, ferr := r.formatter.Format(result)
	if ferr != nil {
		return fmt.Errorf("formatting output: %w", ferr)
	}
	text := string(out)
	if r.render != nil {
		if rendered, rerr := r.render(text); rerr == nil {
			text = rendered
		}
	}
	if _, werr := io.WriteString(r.out, text); werr != nil {
		return fmt.Errorf("writing output: %w", werr)
	}

	if err != nil {
		if exitErr != nil {
			return exitErr
		}
		return &ExitError{Code: ExitFailure, Err: err}
	}
	return nil
}
