// Package commitsource reads commit messages and patches from hosting
// service APIs.
package commitsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotCommitURL is returned when a URL does not point at a single commit.
var ErrNotCommitURL = errors.New("not a commit URL")

// Ref identifies a commit on a hosting service.
type Ref struct {
	Host  string // e.g. github.com
	Owner string // user, organisation or GitLab namespace (may contain '/')
	Repo  string
	SHA   string
}

// Project returns "owner/repo".
func (r Ref) Project() string {
	return r.Owner + "/" + r.Repo
}

// RepoURL returns the https URL of the repository.
func (r Ref) RepoURL() string {
	return "https://" + r.Host + "/" + r.Project()
}

// CommitURL returns the web URL of the commit.
func (r Ref) CommitURL() string {
	if r.IsGitLab() {
		return r.RepoURL() + "/-/commit/" + r.SHA
	}
	return r.RepoURL() + "/commit/" + r.SHA
}

// IsGitLab reports whether the ref points at a GitLab instance.
func (r Ref) IsGitLab() bool {
	return strings.Contains(r.Host, "gitlab")
}

// ParseCommitURL splits a commit page URL into its parts. It understands
// GitHub "/commit/<sha>" and "/pull/<n>/commits/<sha>" pages as well as
// GitLab "/-/commit/<sha>" pages. Fragments and query strings are ignored.
func ParseCommitURL(raw string) (Ref, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "http" && u.Scheme != "https" {
		return Ref{}, fmt.Errorf("%q: %w", raw, ErrNotCommitURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	for i := len(parts) - 2; i >= 2; i-- {
		if parts[i] != "commit" && parts[i] != "commits" {
			continue
		}
		sha := parts[i+1]
		repoEnd := i
		switch {
		case parts[i] == "commit" && parts[i-1] == "-":
			repoEnd = i - 1
		case parts[i] == "commits" && i >= 4 && parts[i-2] == "pull":
			repoEnd = i - 2
		case parts[i] == "commits":
			continue
		}
		if repoEnd < 2 || sha == "" {
			break
		}
		return Ref{
			Host:  u.Host,
			Owner: strings.Join(parts[:repoEnd-1], "/"),
			Repo:  strings.TrimSuffix(parts[repoEnd-1], ".git"),
			SHA:   sha,
		}, nil
	}
	return Ref{}, fmt.Errorf("%q: %w", raw, ErrNotCommitURL)
}

// FromRepo builds a Ref from a repository URL and a commit id, the pair the
// browser extension sends.
func FromRepo(repoURL, sha string) (Ref, error) {
	repoURL = strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(repoURL), "/"), ".git")
	if i := strings.IndexByte(sha, '#'); i >= 0 {
		sha = sha[:i]
	}
	return ParseCommitURL(repoURL + "/commit/" + sha)
}

// FileChange is one file touched by a commit.
type FileChange struct {
	Path      string `json:"path" yaml:"path"`
	Status    string `json:"status" yaml:"status"`
	Additions int    `json:"additions" yaml:"additions"`
	Deletions int    `json:"deletions" yaml:"deletions"`
	Patch     string `json:"patch,omitempty" yaml:"patch,omitempty"`
}

// Commit is a commit message plus its per-file patches.
type Commit struct {
	SHA     string       `json:"sha" yaml:"sha"`
	Message string       `json:"message" yaml:"message"`
	Files   []FileChange `json:"files" yaml:"files"`
}

// Text renders the commit for inclusion in a prompt, stopping once maxBytes
// is reached. A maxBytes of zero means no limit.
func (c *Commit) Text(maxBytes int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "commit %s\n\n%s\n", c.SHA, strings.TrimSpace(c.Message))
	for _, f := range c.Files {
		fmt.Fprintf(&sb, "\n--- %s (%s, +%d -%d)\n", f.Path, f.Status, f.Additions, f.Deletions)
		sb.WriteString(f.Patch)
		if !strings.HasSuffix(f.Patch, "\n") {
			sb.WriteString("\n")
		}
		if maxBytes > 0 && sb.Len() >= maxBytes {
			break
		}
	}
	s := sb.String()
	if maxBytes > 0 && len(s) > maxBytes {
		s = strings.ToValidUTF8(s[:maxBytes], "") + "\n[truncated]\n"
	}
	return s
}

// Source fetches commit changes from a hosting service.
type Source interface {
	Changes(ctx context.Context, ref Ref) (*Commit, error)
}

// Tokens holds per-service credentials.
type Tokens struct {
	GitHub string
	GitLab string
}

// ForRef returns the Source serving ref's host.
func ForRef(ref Ref, tokens Tokens) (Source, error) {
	if ref.IsGitLab() {
		gl, err := NewGitLab(tokens.GitLab, "https://"+ref.Host)
		if err != nil {
			return nil, err
		}
		return gl, nil
	}
	if ref.Host == "github.com" || ref.Host == "www.github.com" {
		return NewGitHub(tokens.GitHub), nil
	}
	gh, err := NewGitHubEnterprise(tokens.GitHub, "https://"+ref.Host)
	if err != nil {
		return nil, err
	}
	return gh, nil
}
