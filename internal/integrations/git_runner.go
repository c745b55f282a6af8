package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/julianshen/commitpro/internal/procrun"
)

// GitRunner executes git commands in a project directory.
type GitRunner struct {
	workDir string
	runner  *procrun.Runner
}

// NewGitRunner creates a GitRunner for the given directory.
func NewGitRunner(workDir string) *GitRunner {
	return &GitRunner{workDir: workDir, runner: &procrun.Runner{}}
}

// WithLogger returns a copy of g that logs command lines to logger.
func (g *GitRunner) WithLogger(logger *slog.Logger) *GitRunner {
	return &GitRunner{workDir: g.workDir, runner: &procrun.Runner{Logger: logger}}
}

// Clone performs `git clone` of url into dest. A depth above zero makes the
// clone shallow.
func (g *GitRunner) Clone(ctx context.Context, url, dest string, depth int) error {
	args := []string{"clone", "--quiet"}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	args = append(args, url, dest)
	_, err := g.run(ctx, args...)
	return err
}

// Fetch retrieves a single ref from origin, used when a shallow clone does not
// contain the wanted commit.
func (g *GitRunner) Fetch(ctx context.Context, ref string, depth int) error {
	args := []string{"fetch", "--quiet"}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	args = append(args, "origin", ref)
	_, err := g.run(ctx, args...)
	return err
}

// RevParse resolves ref to a full commit hash.
func (g *GitRunner) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Parent returns the first parent of HEAD. ok is false when HEAD has no
// parent, including when a shallow clone cut the history.
func (g *GitRunner) Parent(ctx context.Context) (hash string, ok bool, err error) {
	res, err := g.runner.Run(ctx, procrun.Command{
		Name: "git",
		Args: []string{"rev-parse", "--verify", "--quiet", "HEAD^"},
		Dir:  g.workDir,
	})
	if err != nil {
		return "", false, fmt.Errorf("git rev-parse: %w", err)
	}
	if !res.OK() {
		return "", false, nil
	}
	return strings.TrimSpace(res.Stdout), true, nil
}

// Checkout switches the working tree to ref, detaching HEAD if needed.
func (g *GitRunner) Checkout(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "checkout", "--quiet", "--force", ref)
	return err
}

// Show returns the commit message and patch for ref.
func (g *GitRunner) Show(ctx context.Context, ref string) (string, error) {
	return g.run(ctx, "show", "--format=medium", "--patch", ref)
}

func (g *GitRunner) run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("git: no subcommand provided")
	}
	res, err := g.runner.Run(ctx, procrun.Command{Name: "git", Args: args, Dir: g.workDir})
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	if !res.OK() {
		return "", fmt.Errorf("git %s: exit %d: %s", args[0], res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}
