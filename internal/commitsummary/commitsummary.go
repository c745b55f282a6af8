// Package commitsummary produces structured commit messages: it mines the
// commit for refactorings, asks the language model for a summary and caches
// the result per repository and commit.
package commitsummary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/julianshen/commitpro/internal/commitsource"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/integrations"
	"github.com/julianshen/commitpro/internal/prompt"
	"github.com/julianshen/commitpro/internal/refactoring"
	"github.com/julianshen/commitpro/internal/scrape"
	"github.com/julianshen/commitpro/internal/store"
	"github.com/julianshen/commitpro/internal/summarizer"
)

// NoRefactorings is reported for commits without stored refactorings.
const NoRefactorings = "No refactorings found"

// maxChangeBytes bounds the commit changes folded into a prompt.
const maxChangeBytes = 48 * 1024

var (
	// ErrNoLLMKey is returned when the app has no language model key.
	ErrNoLLMKey = errors.New("OpenAI API key not configured")
	// ErrNoGitHubKey is returned when the app has no GitHub token.
	ErrNoGitHubKey = errors.New("GitHub API token not configured")
	// ErrCommitNotFound is returned by Message for commits never summarized.
	ErrCommitNotFound = errors.New("Commit not found")
	// ErrMissingCommit is returned for a blank url or commit id.
	ErrMissingCommit = errors.New("url and commit id are required")
)

// UnknownAppError reports an app uuid without stored keys.
type UnknownAppError struct {
	App string
}

func (e *UnknownAppError) Error() string {
	return "API key not found for UUID: " + e.App
}

func (e *UnknownAppError) Unwrap() error {
	return credentials.ErrUnknownApp
}

// KeyStore resolves the keys of a registered app.
type KeyStore interface {
	Keys(ctx context.Context, app string) (*credentials.Keys, error)
}

// CommitStore caches generated messages and mined refactorings.
type CommitStore interface {
	SaveCommit(ctx context.Context, c store.CommitRecord) error
	GetCommit(ctx context.Context, url, commitID string) (*store.CommitRecord, error)
	SaveRefactorings(ctx context.Context, commitID, refactorings string) error
	GetRefactorings(ctx context.Context, commitID string) (string, error)
}

// Detector finds the refactorings of one commit.
type Detector interface {
	Detect(ctx context.Context, repoURL, sha, token string) (*refactoring.Result, error)
}

// RepoSummarizer describes a repository as a whole.
type RepoSummarizer interface {
	Summarize(ctx context.Context, repo string, opts summarizer.Options) (*summarizer.Summary, error)
}

// LocalChanges reads a commit's patch from a checkout of the repository.
type LocalChanges interface {
	CommitChanges(ctx context.Context, repo, sha string) (string, error)
}

// SourceFunc picks the hosting API client for a commit.
type SourceFunc func(ref commitsource.Ref, tokens commitsource.Tokens) (commitsource.Source, error)

// Deps are the collaborators of a Service. Summarizer, Local, Scraper and
// Sources are optional enrichments of commits without refactorings.
type Deps struct {
	Keys       KeyStore
	Commits    CommitStore
	Miner      Detector
	Completer  integrations.CompleterFactory
	Summarizer RepoSummarizer
	Local      LocalChanges
	Scraper    scrape.Scraper
	Sources    SourceFunc
}

// Options tune a Service.
type Options struct {
	// Cache returns stored messages instead of generating new ones.
	Cache bool
	// GitLabToken is used to read commits hosted on GitLab.
	GitLabToken string
	Logger      *slog.Logger
}

// Request identifies the commit to summarize.
type Request struct {
	URL      string // repository URL, e.g. https://github.com/acme/widget
	CommitID string
	Original string // the commit message the author wrote
	AppID    string
}

// Summary is a generated or cached commit message.
type Summary struct {
	CommitID     string              `json:"commitId" yaml:"commit_id"`
	URL          string              `json:"url" yaml:"url"`
	Message      string              `json:"commitMessage" yaml:"commit_message"`
	Refactorings *refactoring.Result `json:"refactorings,omitempty" yaml:"refactorings,omitempty"`
	Cached       bool                `json:"cached" yaml:"cached"`
}

// Message is a stored commit message and its refactorings.
type Message struct {
	CommitMessage string `json:"commitMessage" yaml:"commit_message"`
	Refactorings  string `json:"refactorings" yaml:"refactorings"`
}

// Service generates commit summaries.
type Service struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates a Service.
func New(deps Deps, opts Options) *Service {
	if deps.Sources == nil {
		deps.Sources = commitsource.ForRef
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, opts: opts, logger: logger}
}

func normalize(url, id string) (string, string, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	id = refactoring.CleanCommitID(id)
	if url == "" || id == "" {
		return "", "", ErrMissingCommit
	}
	return url, id, nil
}

// Summarize returns the structured message of a commit, generating and
// storing it unless a cached one exists.
func (s *Service) Summarize(ctx context.Context, req Request) (*Summary, error) {
	url, id, err := normalize(req.URL, req.CommitID)
	if err != nil {
		return nil, err
	}

	if s.opts.Cache {
		rec, err := s.deps.Commits.GetCommit(ctx, url, id)
		switch {
		case err == nil:
			s.logger.Info("using cached commit summary", "commit", id)
			return &Summary{CommitID: id, URL: url, Message: rec.Message, Cached: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("reading cached commit summary failed", "commit", id, "error", err)
		}
	}

	keys, err := s.keys(ctx, req.AppID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(keys.LLM) == "" {
		return nil, ErrNoLLMKey
	}
	if strings.TrimSpace(keys.GitHub) == "" {
		return nil, ErrNoGitHubKey
	}

	commitURL := url + "/commit/" + id
	s.logger.Info("summarizing commit", "url", commitURL)

	refs := s.detect(ctx, url, id, keys.GitHub)

	var p, suffix string
	if refs.Empty() {
		p = s.enrich(ctx, prompt.CommitFromURL(commitURL), url, id, keys.GitHub)
		suffix = prompt.NoRefactoringSuffix
	} else {
		p = prompt.CommitFromRefactorings(refs.Messages())
		suffix = prompt.InstructionSuffix(refs.Counts())
	}

	completer, err := s.deps.Completer(keys.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	text, err := completer.Complete(ctx, p)
	if err != nil {
		return nil, err
	}
	msg := text + suffix

	if err := s.deps.Commits.SaveCommit(ctx, store.CommitRecord{
		CommitID: id,
		URL:      url,
		Message:  msg,
		Original: req.Original,
	}); err != nil {
		s.logger.Warn("caching commit summary failed", "commit", id, "error", err)
	}
	return &Summary{CommitID: id, URL: url, Message: msg, Refactorings: refs}, nil
}

// Message returns the stored message and refactorings of a commit.
func (s *Service) Message(ctx context.Context, url, id string) (*Message, error) {
	url, id, err := normalize(url, id)
	if err != nil {
		return nil, err
	}
	rec, err := s.deps.Commits.GetCommit(ctx, url, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCommitNotFound
		}
		return nil, err
	}
	refs, err := s.deps.Commits.GetRefactorings(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		refs = NoRefactorings
	case err != nil:
		return nil, err
	}
	return &Message{CommitMessage: rec.Message, Refactorings: refs}, nil
}

// Refactorings returns the numbered refactoring list of a commit, mining it
// with the app's GitHub token when nothing is stored yet.
func (s *Service) Refactorings(ctx context.Context, url, id, app string) (string, error) {
	url, id, err := normalize(url, id)
	if err != nil {
		return "", err
	}
	stored, err := s.deps.Commits.GetRefactorings(ctx, id)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	keys, err := s.keys(ctx, app)
	if err != nil {
		return "", err
	}
	res, err := s.deps.Miner.Detect(ctx, refactoring.RepoURL(url), id, keys.GitHub)
	if err != nil {
		return "", err
	}
	s.save(ctx, id, res)
	return res.Messages(), nil
}

func (s *Service) keys(ctx context.Context, app string) (*credentials.Keys, error) {
	keys, err := s.deps.Keys.Keys(ctx, app)
	if err != nil {
		if errors.Is(err, credentials.ErrUnknownApp) {
			return nil, &UnknownAppError{App: app}
		}
		return nil, err
	}
	return keys, nil
}

// detect mines refactorings. A failing miner is treated as finding none.
func (s *Service) detect(ctx context.Context, url, id, token string) *refactoring.Result {
	res, err := s.deps.Miner.Detect(ctx, refactoring.RepoURL(url), id, token)
	if err != nil {
		s.logger.Warn("refactoring detection failed", "commit", id, "error", err)
		return &refactoring.Result{Commit: id}
	}
	s.save(ctx, id, res)
	return res
}

func (s *Service) save(ctx context.Context, id string, res *refactoring.Result) {
	if res.Empty() {
		return
	}
	if err := s.deps.Commits.SaveRefactorings(ctx, id, res.Messages()); err != nil {
		s.logger.Warn("saving refactorings failed", "commit", id, "error", err)
	}
}

// enrich folds the repository summary and the commit changes into p. Both
// are gathered concurrently and skipped when unavailable.
func (s *Service) enrich(ctx context.Context, p, url, id, githubToken string) string {
	var excerpt, changes string
	g, gctx := errgroup.WithContext(ctx)
	if s.deps.Summarizer != nil {
		g.Go(func() error {
			sum, err := s.deps.Summarizer.Summarize(gctx, url, summarizer.Options{})
			if err != nil {
				s.logger.Warn("repository summary unavailable", "repo", url, "error", err)
				return nil
			}
			excerpt = sum.Excerpt
			return nil
		})
	}
	g.Go(func() error {
		changes = s.changes(gctx, url, id, githubToken)
		return nil
	})
	_ = g.Wait()

	return prompt.WithChanges(prompt.WithRepositoryContext(p, excerpt), changes)
}

// changes reads the commit diff from the hosting API, falling back to a
// local checkout and then to the text of the commit page.
func (s *Service) changes(ctx context.Context, url, id, githubToken string) string {
	ref, err := commitsource.FromRepo(url, id)
	if err == nil {
		var src commitsource.Source
		src, err = s.deps.Sources(ref, commitsource.Tokens{GitHub: githubToken, GitLab: s.opts.GitLabToken})
		if err == nil {
			var c *commitsource.Commit
			c, err = src.Changes(ctx, ref)
			if err == nil {
				return c.Text(maxChangeBytes)
			}
		}
	}
	s.logger.Warn("reading commit changes failed", "commit", id, "error", err)

	if s.deps.Local != nil {
		text, err := s.deps.Local.CommitChanges(ctx, url, id)
		if err == nil && strings.TrimSpace(text) != "" {
			return truncate(text)
		}
		s.logger.Warn("reading commit from checkout failed", "commit", id, "error", err)
	}

	if s.deps.Scraper == nil {
		return ""
	}
	text, err := s.deps.Scraper.Text(ctx, url+"/commit/"+id)
	if err != nil {
		s.logger.Warn("scraping commit page failed", "commit", id, "error", err)
		return ""
	}
	return truncate(text)
}

func truncate(text string) string {
	if len(text) > maxChangeBytes {
		return text[:maxChangeBytes]
	}
	return text
}
