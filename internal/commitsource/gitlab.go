package commitsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/xanzy/go-gitlab"
)

// GitLab reads commits through the GitLab REST API.
type GitLab struct {
	client *gitlab.Client
}

// NewGitLab creates a client for the GitLab instance at baseURL
// (e.g. https://gitlab.com).
func NewGitLab(token, baseURL string) (*GitLab, error) {
	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	c, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &GitLab{client: c}, nil
}

// Changes implements Source.
func (g *GitLab) Changes(ctx context.Context, ref Ref) (*Commit, error) {
	pid := ref.Project()
	commit, _, err := g.client.Commits.GetCommit(pid, ref.SHA, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab commit %s@%s: %w", pid, ref.SHA, err)
	}
	diffs, _, err := g.client.Commits.GetCommitDiff(pid, ref.SHA, &gitlab.GetCommitDiffOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab commit diff %s@%s: %w", pid, ref.SHA, err)
	}

	c := &Commit{SHA: commit.ID, Message: commit.Message}
	for _, d := range diffs {
		add, del := countLines(d.Diff)
		c.Files = append(c.Files, FileChange{
			Path:      d.NewPath,
			Status:    diffStatus(d),
			Additions: add,
			Deletions: del,
			Patch:     d.Diff,
		})
	}
	return c, nil
}

func diffStatus(d *gitlab.Diff) string {
	switch {
	case d.NewFile:
		return "added"
	case d.DeletedFile:
		return "removed"
	case d.RenamedFile:
		return "renamed"
	default:
		return "modified"
	}
}

func countLines(patch string) (add, del int) {
	for _, line := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			add++
		case strings.HasPrefix(line, "-"):
			del++
		}
	}
	return add, del
}
