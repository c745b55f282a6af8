// Package summarizer asks an AI pair-programming CLI for a short description
// of a repository and cuts a bounded excerpt from what it prints.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/procrun"
	"github.com/julianshen/commitpro/internal/workspace"
)

// DefaultMessage is the question put to the tool.
const DefaultMessage = "give me a brief summary of the project including a brief list of files (not all)"

// jsonSuffix asks the tool to answer in JSON instead of prose.
const jsonSuffix = " in a json format"

// Tool describes how to invoke a summarization CLI.
type Tool interface {
	Name() string
	Binary() string
	Args(dir, message string) []string
}

// Aider runs the aider CLI non-interactively.
type Aider struct {
	BinaryPath string
	ExtraArgs  []string
}

// Name implements Tool.
func (a Aider) Name() string { return "aider" }

// Binary implements Tool.
func (a Aider) Binary() string {
	if a.BinaryPath == "" {
		return "aider"
	}
	return a.BinaryPath
}

// Args implements Tool.
func (a Aider) Args(dir, message string) []string {
	args := []string{"--no-gitignore", "--reasoning-effort", "2", "--yes-always", "--message", message}
	args = append(args, a.ExtraArgs...)
	return append(args, dir)
}

// ToolError reports a tool that ran but exited non-zero.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Tool, e.ExitCode, msg)
}

// Summary is the outcome of one summarization run.
type Summary struct {
	Repo      string        `json:"repo" yaml:"repo"`
	Excerpt   string        `json:"excerpt" yaml:"excerpt"`
	Raw       string        `json:"-" yaml:"-"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Truncated bool          `json:"truncated" yaml:"truncated"`
}

// Options tune a single Summarize call.
type Options struct {
	JSON bool // ask for a JSON formatted answer
}

// Summarizer prepares a checkout, runs the tool and extracts the excerpt.
type Summarizer struct {
	tool      Tool
	workspace *workspace.Manager
	runner    *procrun.Runner
	message   string
	timeout   time.Duration
	extract   ExtractConfig
	logger    *slog.Logger
}

// New builds a Summarizer from configuration.
func New(cfg config.SummarizerConfig, ws *workspace.Manager, logger *slog.Logger) (*Summarizer, error) {
	extra, err := procrun.SplitArgs(cfg.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("summarizer extra_args: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	message := cfg.Message
	if message == "" {
		message = DefaultMessage
	}
	return &Summarizer{
		tool:      Aider{BinaryPath: cfg.Binary, ExtraArgs: extra},
		workspace: ws,
		runner:    &procrun.Runner{Logger: logger},
		message:   message,
		timeout:   cfg.Timeout.Duration,
		extract: ExtractConfig{
			StartPattern: cfg.StartPattern,
			EndPattern:   cfg.EndPattern,
			MaxChars:     cfg.MaxChars,
		},
		logger: logger,
	}, nil
}

// WithTool replaces the CLI being driven.
func (s *Summarizer) WithTool(t Tool) *Summarizer {
	s.tool = t
	return s
}

// Summarize produces a repository summary for a remote URL or local path.
// Clones are always removed before returning.
func (s *Summarizer) Summarize(ctx context.Context, repo string, opts Options) (*Summary, error) {
	co, err := s.workspace.Prepare(ctx, repo)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := co.Cleanup(); cerr != nil {
			s.logger.Warn("checkout cleanup failed", "dir", co.Dir, "error", cerr)
		}
	}()

	message := s.message
	if opts.JSON {
		message += jsonSuffix
	}

	args := s.tool.Args(co.Dir, message)
	s.logger.Info("running summarizer", "tool", s.tool.Name(), "cmd", procrun.CommandLine(s.tool.Binary(), args))

	res, err := s.runner.Run(ctx, procrun.Command{
		Name:    s.tool.Binary(),
		Args:    args,
		Dir:     co.Dir,
		Timeout: s.timeout,
	})
	if err != nil {
		if errors.Is(err, procrun.ErrTimeout) {
			return nil, fmt.Errorf("%s command timed out: %w", s.tool.Name(), err)
		}
		return nil, err
	}
	if !res.OK() {
		return nil, &ToolError{Tool: s.tool.Name(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	cfg := s.extract
	cfg.Echo = message
	excerpt, truncated, err := Extract(res.Stdout, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", s.tool.Name(), err)
	}

	s.logger.Info("summary extracted", "repo", repo, "chars", len(excerpt), "truncated", truncated, "duration", res.Duration)
	return &Summary{
		Repo:      repo,
		Excerpt:   excerpt,
		Raw:       res.Stdout,
		Duration:  res.Duration,
		Truncated: truncated,
	}, nil
}
