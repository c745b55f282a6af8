package commitsource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
)

// GitHub reads commits through the GitHub REST API.
type GitHub struct {
	client *github.Client
}

// NewGitHub creates a client for github.com. An empty token makes
// unauthenticated requests, which GitHub rate-limits heavily.
func NewGitHub(token string) *GitHub {
	c := github.NewClient(nil)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	return &GitHub{client: c}
}

// NewGitHubEnterprise creates a client for a GitHub Enterprise host.
func NewGitHubEnterprise(token, baseURL string) (*GitHub, error) {
	c, err := NewGitHub(token).client.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("github enterprise url: %w", err)
	}
	return &GitHub{client: c}, nil
}

// WithBaseURL points the client at a different API root.
func (g *GitHub) WithBaseURL(base string) (*GitHub, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("github base url: %w", err)
	}
	g.client.BaseURL = u
	return g, nil
}

// Changes implements Source.
func (g *GitHub) Changes(ctx context.Context, ref Ref) (*Commit, error) {
	rc, _, err := g.client.Repositories.GetCommit(ctx, ref.Owner, ref.Repo, ref.SHA, nil)
	if err != nil {
		return nil, fmt.Errorf("github commit %s@%s: %w", ref.Project(), ref.SHA, err)
	}
	c := &Commit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
	}
	for _, f := range rc.Files {
		c.Files = append(c.Files, FileChange{
			Path:      f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}
	return c, nil
}

// Whoami returns the login the token belongs to.
func (g *GitHub) Whoami(ctx context.Context) (string, error) {
	u, _, err := g.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("github authentication: %w", err)
	}
	return u.GetLogin(), nil
}
