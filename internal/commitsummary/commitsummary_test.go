package commitsummary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/commitpro/internal/commitsource"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/integrations"
	"github.com/julianshen/commitpro/internal/logging"
	"github.com/julianshen/commitpro/internal/prompt"
	"github.com/julianshen/commitpro/internal/refactoring"
	"github.com/julianshen/commitpro/internal/store"
	"github.com/julianshen/commitpro/internal/summarizer"
)

const repo = "https://github.com/acme/widget"

type fakeMiner struct {
	result *refactoring.Result
	err    error
	calls  int
	token  string
	repo   string
}

func (f *fakeMiner) Detect(_ context.Context, repoURL, sha, token string) (*refactoring.Result, error) {
	f.calls++
	f.token = token
	f.repo = repoURL
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &refactoring.Result{Commit: sha}, nil
	}
	return f.result, nil
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	key     string
	prompts []string
}

func (f *fakeCompleter) factory(key string) (integrations.Completer, error) {
	f.key = key
	return f, nil
}

func (f *fakeCompleter) Complete(_ context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

type fakeSummarizer struct{ excerpt string }

func (f fakeSummarizer) Summarize(context.Context, string, summarizer.Options) (*summarizer.Summary, error) {
	if f.excerpt == "" {
		return nil, summarizer.ErrNoSummary
	}
	return &summarizer.Summary{Excerpt: f.excerpt}, nil
}

type fakeSource struct {
	commit *commitsource.Commit
	err    error
}

func (f fakeSource) Changes(context.Context, commitsource.Ref) (*commitsource.Commit, error) {
	return f.commit, f.err
}

type fakeLocal struct {
	text string
	repo string
	sha  string
}

func (f *fakeLocal) CommitChanges(_ context.Context, repo, sha string) (string, error) {
	f.repo, f.sha = repo, sha
	if f.text == "" {
		return "", errors.New("clone failed")
	}
	return f.text, nil
}

type fakeScraper struct {
	text string
	url  string
}

func (f *fakeScraper) Text(_ context.Context, url string) (string, error) {
	f.url = url
	if f.text == "" {
		return "", errors.New("not found")
	}
	return f.text, nil
}

type fixture struct {
	db    *store.Store
	creds *credentials.Service
	app   string
	miner *fakeMiner
	llm   *fakeCompleter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	creds := credentials.NewService(db)
	ctx := context.Background()
	app, err := creds.Register(ctx)
	require.NoError(t, err)
	require.NoError(t, creds.SetGitHubKey(ctx, app, "ghp_token"))
	require.NoError(t, creds.SetLLMKey(ctx, app, "sk-0123456789abcdefghij"))

	return &fixture{
		db:    db,
		creds: creds,
		app:   app,
		miner: &fakeMiner{},
		llm:   &fakeCompleter{reply: "SUMMARY: tidy up"},
	}
}

func (f *fixture) service(deps Deps, cache bool) *Service {
	deps.Keys = f.creds
	deps.Commits = f.db
	deps.Miner = f.miner
	deps.Completer = f.llm.factory
	if deps.Sources == nil {
		deps.Sources = func(commitsource.Ref, commitsource.Tokens) (commitsource.Source, error) {
			return fakeSource{err: errors.New("offline")}, nil
		}
	}
	return New(deps, Options{Cache: cache, Logger: logging.Discard()})
}

func TestSummarizeWithRefactorings(t *testing.T) {
	f := newFixture(t)
	f.miner.result = &refactoring.Result{Commit: "abc123", Refactorings: []refactoring.Refactoring{
		{Type: "Rename Method", Description: "Rename Method a() to b()"},
		{Type: "Extract Method", Description: "Extract Method c() from d()"},
		{Type: "Rename Method", Description: "Rename Method e() to f()"},
	}}
	svc := f.service(Deps{}, true)
	ctx := context.Background()

	sum, err := svc.Summarize(ctx, Request{URL: repo + "/", CommitID: "abc123#diff-1", Original: "wip", AppID: f.app})
	require.NoError(t, err)
	assert.False(t, sum.Cached)
	assert.Equal(t, "abc123", sum.CommitID)
	assert.Equal(t, "SUMMARY: tidy up INSTRUCTION: 1 Extract Method  2 Rename Method  ", sum.Message)
	assert.Equal(t, "ghp_token", f.miner.token)
	assert.Equal(t, repo+".git", f.miner.repo)
	assert.Equal(t, "sk-0123456789abcdefghij", f.llm.key)
	require.Len(t, f.llm.prompts, 1)
	assert.Contains(t, f.llm.prompts[0], "Refactorings:\n1. Rename Method a() to b()\n2. Extract Method")

	rec, err := f.db.GetCommit(ctx, repo, "abc123")
	require.NoError(t, err)
	assert.Equal(t, sum.Message, rec.Message)
	assert.Equal(t, "wip", rec.Original)

	msg, err := svc.Message(ctx, repo, "abc123")
	require.NoError(t, err)
	assert.Equal(t, sum.Message, msg.CommitMessage)
	assert.True(t, strings.HasPrefix(msg.Refactorings, "1. Rename Method a() to b()\n"))
}

func TestSummarizeUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.SaveCommit(ctx, store.CommitRecord{CommitID: "abc123", URL: repo, Message: "cached"}))

	sum, err := f.service(Deps{}, true).Summarize(ctx, Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.True(t, sum.Cached)
	assert.Equal(t, "cached", sum.Message)
	assert.Zero(t, f.miner.calls)

	sum, err = f.service(Deps{}, false).Summarize(ctx, Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.False(t, sum.Cached)
	assert.Equal(t, 1, f.miner.calls)
}

func TestSummarizeWithoutRefactoringsEnrichesPrompt(t *testing.T) {
	f := newFixture(t)
	scraper := &fakeScraper{text: "scraped page"}
	svc := f.service(Deps{
		Summarizer: fakeSummarizer{excerpt: "A widget factory."},
		Scraper:    scraper,
		Sources: func(ref commitsource.Ref, tokens commitsource.Tokens) (commitsource.Source, error) {
			assert.Equal(t, "ghp_token", tokens.GitHub)
			assert.Equal(t, "abc123", ref.SHA)
			return fakeSource{commit: &commitsource.Commit{SHA: "abc123", Message: "fix it", Files: []commitsource.FileChange{
				{Path: "main.go", Status: "modified", Additions: 1, Patch: "+x"},
			}}}, nil
		},
	}, false)

	sum, err := svc.Summarize(context.Background(), Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY: tidy up"+prompt.NoRefactoringSuffix, sum.Message)

	require.Len(t, f.llm.prompts, 1)
	p := f.llm.prompts[0]
	assert.Contains(t, p, "URL: "+repo+"/commit/abc123")
	assert.Contains(t, p, "A widget factory.")
	assert.Contains(t, p, "--- main.go (modified, +1 -0)")
	assert.NotContains(t, p, "scraped page")
	assert.Empty(t, scraper.url)
}

func TestSummarizeFallsBackToScraper(t *testing.T) {
	f := newFixture(t)
	f.miner.err = errors.New("miner crashed")
	scraper := &fakeScraper{text: "scraped page"}
	svc := f.service(Deps{Scraper: scraper}, false)

	sum, err := svc.Summarize(context.Background(), Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sum.Message, prompt.NoRefactoringSuffix))
	assert.Equal(t, repo+"/commit/abc123", scraper.url)
	assert.Contains(t, f.llm.prompts[0], "scraped page")

	_, err = f.db.GetRefactorings(context.Background(), "abc123")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummarizeReadsChangesFromCheckout(t *testing.T) {
	f := newFixture(t)
	local := &fakeLocal{text: "commit abc123\n\n    fix it\n\n+added line"}
	scraper := &fakeScraper{text: "scraped page"}
	svc := f.service(Deps{Local: local, Scraper: scraper}, false)

	_, err := svc.Summarize(context.Background(), Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.Equal(t, repo, local.repo)
	assert.Equal(t, "abc123", local.sha)
	assert.Contains(t, f.llm.prompts[0], "+added line")
	assert.NotContains(t, f.llm.prompts[0], "scraped page")
	assert.Empty(t, scraper.url)

	// A failing checkout still leaves the page text.
	f.llm.prompts = nil
	svc = f.service(Deps{Local: &fakeLocal{}, Scraper: scraper}, false)
	_, err = svc.Summarize(context.Background(), Request{URL: repo, CommitID: "abc123", AppID: f.app})
	require.NoError(t, err)
	assert.Contains(t, f.llm.prompts[0], "scraped page")
}

func TestSummarizeKeyErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(Deps{}, false)

	_, err := svc.Summarize(ctx, Request{URL: repo, CommitID: "abc", AppID: "ghost"})
	assert.EqualError(t, err, "API key not found for UUID: ghost")
	assert.ErrorIs(t, err, credentials.ErrUnknownApp)

	bare, err := f.creds.Register(ctx)
	require.NoError(t, err)
	_, err = svc.Summarize(ctx, Request{URL: repo, CommitID: "abc", AppID: bare})
	assert.ErrorIs(t, err, ErrNoLLMKey)

	require.NoError(t, f.creds.SetLLMKey(ctx, bare, "sk-0123456789abcdefghij"))
	_, err = svc.Summarize(ctx, Request{URL: repo, CommitID: "abc", AppID: bare})
	assert.ErrorIs(t, err, ErrNoGitHubKey)

	_, err = svc.Summarize(ctx, Request{URL: repo, CommitID: "#frag", AppID: f.app})
	assert.ErrorIs(t, err, ErrMissingCommit)
	assert.Zero(t, f.miner.calls)
}

func TestSummarizeCompletionError(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("rate limited")

	_, err := f.service(Deps{}, false).Summarize(context.Background(), Request{URL: repo, CommitID: "abc", AppID: f.app})
	assert.EqualError(t, err, "rate limited")
	_, err = f.db.GetCommit(context.Background(), repo, "abc")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(Deps{}, true)

	_, err := svc.Message(ctx, repo, "abc")
	assert.ErrorIs(t, err, ErrCommitNotFound)

	require.NoError(t, f.db.SaveCommit(ctx, store.CommitRecord{CommitID: "abc", URL: repo, Message: "msg"}))
	m, err := svc.Message(ctx, repo, "abc")
	require.NoError(t, err)
	assert.Equal(t, &Message{CommitMessage: "msg", Refactorings: NoRefactorings}, m)
}

func TestRefactorings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.service(Deps{}, true)

	f.miner.result = &refactoring.Result{Commit: "abc", Refactorings: []refactoring.Refactoring{
		{Type: "Move Class", Description: "Move Class a.B moved to c.B"},
	}}
	refs, err := svc.Refactorings(ctx, repo, "abc", f.app)
	require.NoError(t, err)
	assert.Equal(t, "1. Move Class a.B moved to c.B\n", refs)
	assert.Equal(t, 1, f.miner.calls)

	// Stored now; the miner is not consulted again, not even for unknown apps.
	refs, err = svc.Refactorings(ctx, repo, "abc", "ghost")
	require.NoError(t, err)
	assert.Equal(t, "1. Move Class a.B moved to c.B\n", refs)
	assert.Equal(t, 1, f.miner.calls)

	_, err = svc.Refactorings(ctx, repo, "other", "ghost")
	var unknown *UnknownAppError
	assert.ErrorAs(t, err, &unknown)

	f.miner.err = errors.New("boom")
	_, err = svc.Refactorings(ctx, repo, "other", f.app)
	assert.EqualError(t, err, "boom")
}
