// Package workspace resolves a repository argument to a directory on disk,
// shallow-cloning remote URLs into a scratch area and removing them afterwards.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/julianshen/commitpro/internal/integrations"
)

// ErrPathNotFound is returned when a local repository path is not a directory.
var ErrPathNotFound = errors.New("repository path not found")

var remotePrefixes = []string{"http://", "https://", "git@"}

// IsRemote reports whether repo names a remote Git location rather than a
// local path.
func IsRemote(repo string) bool {
	for _, p := range remotePrefixes {
		if strings.HasPrefix(repo, p) {
			return true
		}
	}
	return false
}

// RepoName returns the last path element of a repository URL or path,
// without a trailing ".git".
func RepoName(repo string) string {
	s := strings.TrimRight(strings.TrimSpace(repo), "/\\")
	if i := strings.LastIndex(s, ":"); strings.HasPrefix(s, "git@") && i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, "\\", "/")
	name := strings.TrimSuffix(path.Base(s), ".git")
	if name == "" || name == "." || name == "/" {
		return "repo"
	}
	return name
}

// Options configure a Manager.
type Options struct {
	ReposDir       string
	CloneDepth     int
	CleanupDelay   time.Duration
	CleanupRetries int
	Logger         *slog.Logger
}

// Manager prepares checkouts.
type Manager struct {
	opts Options
	git  *integrations.GitRunner
}

// NewManager creates a Manager. Zero option values get defaults.
func NewManager(opts Options) *Manager {
	if opts.ReposDir == "" {
		opts.ReposDir = filepath.Join(os.TempDir(), "commitpro-repos")
	}
	if opts.CleanupRetries <= 0 {
		opts.CleanupRetries = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts: opts,
		git:  integrations.NewGitRunner("").WithLogger(opts.Logger),
	}
}

// Checkout is a directory holding a repository ready for tools to inspect.
type Checkout struct {
	Dir    string
	Remote bool
	Source string

	m *Manager
}

// Git returns a runner bound to the checkout directory.
func (c *Checkout) Git() *integrations.GitRunner {
	return integrations.NewGitRunner(c.Dir).WithLogger(c.m.opts.Logger)
}

// Prepare clones a remote repository or validates a local path.
func (m *Manager) Prepare(ctx context.Context, repo string) (*Checkout, error) {
	repo = strings.TrimSpace(repo)
	if !IsRemote(repo) {
		abs, err := filepath.Abs(repo)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", repo, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%s: %w", abs, ErrPathNotFound)
		}
		return &Checkout{Dir: abs, Source: repo, m: m}, nil
	}

	if err := os.MkdirAll(m.opts.ReposDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating repos dir: %w", err)
	}
	dest := filepath.Join(m.opts.ReposDir, RepoName(repo)+"_"+uuid.NewString()[:8])

	m.opts.Logger.Info("cloning repository", "repo", repo, "dest", dest, "depth", m.opts.CloneDepth)
	if err := m.git.Clone(ctx, repo, dest, m.opts.CloneDepth); err != nil {
		m.removeAll(dest)
		return nil, fmt.Errorf("cloning %s: %w", repo, err)
	}
	return &Checkout{Dir: dest, Remote: true, Source: repo, m: m}, nil
}

// CommitChanges returns the message and patch of commit sha in repo as
// printed by git show. Remote repositories are cloned for the call and
// removed afterwards; a commit outside the shallow history is fetched.
func (m *Manager) CommitChanges(ctx context.Context, repo, sha string) (string, error) {
	co, err := m.Prepare(ctx, repo)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := co.Cleanup(); err != nil {
			m.opts.Logger.Warn("removing checkout failed", "dir", co.Dir, "error", err)
		}
	}()

	git := co.Git()
	if _, err := git.RevParse(ctx, sha); err != nil {
		if !co.Remote {
			return "", fmt.Errorf("commit %s: %w", sha, err)
		}
		if ferr := git.Fetch(ctx, sha, 2); ferr != nil {
			return "", fmt.Errorf("fetching commit %s: %w", sha, ferr)
		}
	}
	return git.Show(ctx, sha)
}

// Cleanup removes a cloned checkout. Local checkouts are left untouched.
func (c *Checkout) Cleanup() error {
	if c == nil || !c.Remote {
		return nil
	}
	return c.m.removeAll(c.Dir)
}

// removeAll deletes dir, clearing read-only bits first and retrying while
// another process still holds files open.
func (m *Manager) removeAll(dir string) error {
	var err error
	for attempt := 1; attempt <= m.opts.CleanupRetries; attempt++ {
		makeWritable(dir)
		if err = os.RemoveAll(dir); err == nil {
			m.opts.Logger.Debug("removed checkout", "dir", dir)
			return nil
		}
		m.opts.Logger.Warn("cleanup attempt failed", "dir", dir, "attempt", attempt, "error", err)
		if attempt < m.opts.CleanupRetries && m.opts.CleanupDelay > 0 {
			time.Sleep(m.opts.CleanupDelay)
		}
	}
	return fmt.Errorf("removing %s: %w", dir, err)
}

func makeWritable(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().Perm()&0o200 == 0 {
			_ = os.Chmod(p, info.Mode().Perm()|0o200)
		}
		return nil
	})
}
