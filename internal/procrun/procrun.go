// Package procrun runs external command-line tools with a timeout and
// bounded output capture.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// MaxOutputBytes caps how much of each stream is retained.
const MaxOutputBytes = 1024 * 1024

var (
	// ErrTimeout is returned when a command exceeds its timeout.
	ErrTimeout = errors.New("command timed out")
	// ErrNotFound is returned when the executable cannot be located.
	ErrNotFound = errors.New("executable not found")
)

// Command describes a single process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Timeout time.Duration
}

// Result holds the captured output of a finished process.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
}

// Combined returns stdout followed by stderr under a "STDERR:" marker.
func (r *Result) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\nSTDERR: " + r.Stderr
}

// OK reports whether the process exited with status zero.
func (r *Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes commands. The zero value is usable and logs to slog.Default.
type Runner struct {
	Logger *slog.Logger
}

// Run executes cmd with the default runner.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	return (&Runner{}).Run(ctx, cmd)
}

// Run starts the command and waits for it. A non-zero exit status is not an
// error; inspect Result.ExitCode. Timeouts yield ErrTimeout and a missing
// binary yields ErrNotFound.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx := ctx
	cancel := func() {}
	if cmd.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
	}
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	// Release the pipes shortly after kill even if grandchildren hold them.
	c.WaitDelay = 2 * time.Second

	stdout := &cappedBuffer{limit: MaxOutputBytes}
	stderr := &cappedBuffer{limit: MaxOutputBytes}
	c.Stdout = stdout
	c.Stderr = stderr

	logger.Debug("running command", "cmd", CommandLine(cmd.Name, cmd.Args), "dir", cmd.Dir, "timeout", cmd.Timeout)

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.truncated || stderr.truncated,
	}

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s after %s: %w", cmd.Name, cmd.Timeout, ErrTimeout)
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", cmd.Name, ctx.Err())
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			logger.Debug("command exited non-zero", "cmd", cmd.Name, "exit_code", res.ExitCode, "duration", res.Duration)
			return res, nil
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", cmd.Name, ErrNotFound)
		}
		return nil, fmt.Errorf("running %s: %w", cmd.Name, err)
	}

	logger.Debug("command finished", "cmd", cmd.Name, "duration", res.Duration)
	return res, nil
}

// CommandLine renders name and args as a bash-quoted string for logs.
func CommandLine(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		q, err := syntax.Quote(a, syntax.LangBash)
		if err != nil {
			q = fmt.Sprintf("%q", a)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " ")
}

// SplitArgs parses a shell-style argument string such as
// `--model "gpt 4o" --no-auto-commits` into separate arguments.
// Variable references are not expanded.
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, func(string) string { return "" })
	if err != nil {
		return nil, fmt.Errorf("parsing arguments %q: %w", s, err)
	}
	return fields, nil
}

// LookPath reports whether name resolves to an executable.
func LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return p, nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
