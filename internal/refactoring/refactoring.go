// Package refactoring detects the refactorings applied by a single commit
// using the RefactoringMiner command line.
package refactoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/integrations"
	"github.com/julianshen/commitpro/internal/procrun"
)

// Refactoring is one detected change.
type Refactoring struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// Result holds the refactorings found in a commit.
type Result struct {
	Commit       string        `json:"commit" yaml:"commit"`
	Refactorings []Refactoring `json:"refactorings" yaml:"refactorings"`
	Method       string        `json:"method" yaml:"method"` // remote or local
}

// Empty reports whether nothing was detected.
func (r *Result) Empty() bool {
	return r == nil || len(r.Refactorings) == 0
}

// Messages renders the refactorings as a numbered list, one per line.
func (r *Result) Messages() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for i, ref := range r.Refactorings {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(ref.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Counts returns the number of refactorings per type.
func (r *Result) Counts() map[string]int {
	counts := make(map[string]int)
	if r == nil {
		return counts
	}
	for _, ref := range r.Refactorings {
		counts[ref.Type]++
	}
	return counts
}

// Types returns the distinct refactoring types in sorted order.
func (r *Result) Types() []string {
	counts := r.Counts()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CleanCommitID drops anything from the first '#' onwards, which browsers
// append when a commit page is opened at a file anchor.
func CleanCommitID(id string) string {
	if i := strings.IndexByte(id, '#'); i >= 0 {
		id = id[:i]
	}
	return strings.TrimSpace(id)
}

// RepoURL returns url with a ".git" suffix.
func RepoURL(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if strings.HasSuffix(url, ".git") {
		return url
	}
	return url + ".git"
}

// Options configure a Miner.
type Options struct {
	Binary  string
	Timeout time.Duration
	TempDir string
	Logger  *slog.Logger
}

// Miner drives RefactoringMiner.
type Miner struct {
	binary  string
	timeout time.Duration
	tempDir string
	runner  *procrun.Runner
	logger  *slog.Logger
}

// NewMiner creates a Miner.
func NewMiner(opts Options) *Miner {
	if opts.Binary == "" {
		opts.Binary = "RefactoringMiner"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Miner{
		binary:  opts.Binary,
		timeout: opts.Timeout,
		tempDir: opts.TempDir,
		runner:  &procrun.Runner{Logger: opts.Logger},
		logger:  opts.Logger,
	}
}

// NewMinerFromConfig creates a Miner from the [refactoring] section.
func NewMinerFromConfig(cfg config.RefactoringConfig, logger *slog.Logger) *Miner {
	return NewMiner(Options{Binary: cfg.Binary, Timeout: cfg.Timeout.Duration, Logger: logger})
}

// Detect finds the refactorings of commit sha in repoURL. It first asks
// RefactoringMiner to read the commit through the GitHub API and falls back
// to a shallow local clone when that fails or finds nothing. The token, when
// set, authenticates both GitHub access paths.
func (m *Miner) Detect(ctx context.Context, repoURL, sha, token string) (*Result, error) {
	sha = CleanCommitID(sha)
	if sha == "" {
		return nil, errors.New("refactoring: empty commit id")
	}
	repoURL = RepoURL(repoURL)

	work, err := os.MkdirTemp(m.tempDir, "refactoring-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(work)

	if token != "" {
		// RefactoringMiner reads its GitHub credentials from the working directory.
		props := filepath.Join(work, "github-oauth.properties")
		if err := os.WriteFile(props, []byte("OAuthToken="+token+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("writing github credentials: %w", err)
		}
	}

	res, err := m.detectRemote(ctx, work, repoURL, sha, token)
	if err == nil && !res.Empty() {
		return res, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		m.logger.Warn("remote refactoring detection failed, falling back to local clone", "repo", repoURL, "commit", sha, "error", err)
	} else {
		m.logger.Info("no refactorings found remotely, retrying with local clone", "repo", repoURL, "commit", sha)
	}

	local, lerr := m.detectLocal(ctx, work, repoURL, sha, token)
	if lerr != nil {
		if err == nil {
			// The remote run succeeded with zero results; keep that answer.
			return res, nil
		}
		return nil, fmt.Errorf("detecting refactorings: %w", errors.Join(err, lerr))
	}
	return local, nil
}

func (m *Miner) detectRemote(ctx context.Context, work, repoURL, sha, token string) (*Result, error) {
	out := filepath.Join(work, "remote.json")
	secs := strconv.Itoa(int(m.timeout.Seconds()))
	args := []string{"-gc", repoURL, sha, secs, "-json", out}
	if err := m.run(ctx, work, args, token); err != nil {
		return nil, err
	}
	res, err := readResult(out, sha)
	if err != nil {
		return nil, err
	}
	res.Method = "remote"
	return res, nil
}

func (m *Miner) detectLocal(ctx context.Context, work, repoURL, sha, token string) (*Result, error) {
	dir := filepath.Join(work, "clone")
	git := integrations.NewGitRunner("").WithLogger(m.logger)
	if err := git.Clone(ctx, repoURL, dir, 1); err != nil {
		return nil, err
	}
	repo := integrations.NewGitRunner(dir).WithLogger(m.logger)
	// The commit and its parent must both be present for the diff. A failed
	// fetch is tolerated when the clone already holds the commit.
	if err := repo.Fetch(ctx, sha, 2); err != nil {
		if _, rerr := repo.RevParse(ctx, sha); rerr != nil {
			return nil, err
		}
		m.logger.Debug("fetch of commit failed, using cloned history", "commit", sha, "error", err)
	}

	out := filepath.Join(work, "local.json")
	if err := m.run(ctx, work, []string{"-c", dir, sha, "-json", out}, token); err != nil {
		return nil, err
	}
	res, err := readResult(out, sha)
	if err != nil {
		return nil, err
	}
	res.Method = "local"
	return res, nil
}

func (m *Miner) run(ctx context.Context, dir string, args []string, token string) error {
	var env []string
	if token != "" {
		env = []string{"GITHUB_OAUTH=" + token, "GITHUB_TOKEN=" + token}
	}
	res, err := m.runner.Run(ctx, procrun.Command{
		Name:    m.binary,
		Args:    args,
		Dir:     dir,
		Env:     env,
		Timeout: m.timeout + 30*time.Second,
	})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%s exited with status %d: %s", filepath.Base(m.binary), res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

// minerOutput mirrors the JSON document RefactoringMiner writes with -json.
type minerOutput struct {
	Commits []struct {
		SHA1         string        `json:"sha1"`
		Refactorings []Refactoring `json:"refactorings"`
	} `json:"commits"`
}

func readResult(path, sha string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading refactoring output: %w", err)
	}
	return parseOutput(data, sha)
}

func parseOutput(data []byte, sha string) (*Result, error) {
	var doc minerOutput
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing refactoring output: %w", err)
	}
	res := &Result{Commit: sha}
	for _, c := range doc.Commits {
		if c.SHA1 != "" && !strings.HasPrefix(c.SHA1, sha) && !strings.HasPrefix(sha, c.SHA1) {
			continue
		}
		for _, r := range c.Refactorings {
			r.Description = strings.TrimSpace(r.Description)
			res.Refactorings = append(res.Refactorings, r)
		}
	}
	return res, nil
}
