package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/commitsummary"
	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/integrations"
	"github.com/julianshen/commitpro/internal/logging"
	"github.com/julianshen/commitpro/internal/metrics"
	"github.com/julianshen/commitpro/internal/output"
	"github.com/julianshen/commitpro/internal/query"
	"github.com/julianshen/commitpro/internal/rag"
	"github.com/julianshen/commitpro/internal/refactoring"
	"github.com/julianshen/commitpro/internal/runner"
	"github.com/julianshen/commitpro/internal/scrape"
	"github.com/julianshen/commitpro/internal/store"
	"github.com/julianshen/commitpro/internal/summarizer"
	"github.com/julianshen/commitpro/internal/tui"
	"github.com/julianshen/commitpro/internal/workspace"
)

// app lazily builds the services a command needs from the loaded config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	db      *store.Store
	ws      *workspace.Manager
	closers []func()
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "commitpro", "config.toml"), nil
}

func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if quiet {
		return logging.Discard()
	}
	level := cfg.Log.Level
	if verbosity > 0 {
		level = logging.LevelFromVerbosity(verbosity, false).String()
	}
	return logging.New(w, logging.Options{Level: level, Format: cfg.Log.Format})
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: newLogger(cfg, cmd.ErrOrStderr()),
		out:    cmd.OutOrStdout(),
	}, nil
}

// Close releases everything opened through the app, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("closing store failed", "error", err)
		}
	})
	return db, nil
}

func (a *app) credentials(ctx context.Context) (*credentials.Service, error) {
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	return credentials.NewService(db), nil
}

func (a *app) workspace() *workspace.Manager {
	if a.ws == nil {
		w := a.cfg.Workspace
		a.ws = workspace.NewManager(workspace.Options{
			ReposDir:       w.ReposDir,
			CloneDepth:     w.CloneDepth,
			CleanupDelay:   w.CleanupDelay.Duration,
			CleanupRetries: w.CleanupRetries,
			Logger:         a.logger,
		})
	}
	return a.ws
}

func (a *app) summarizer() (*summarizer.Summarizer, error) {
	return summarizer.New(a.cfg.Summarizer, a.workspace(), a.logger)
}

func (a *app) analyzer() *metrics.Analyzer {
	return metrics.NewAnalyzer(a.cfg.Understand, a.logger)
}

// analysis starts the job service; its workers stop when the app closes.
func (a *app) analysis(ctx context.Context) (*analysis.Service, error) {
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	svc := analysis.NewService(a.workspace(), a.analyzer(), db, analysis.Options{
		OutputDir: a.cfg.Workspace.OutputDir,
		Workers:   a.cfg.Server.AnalysisWorker,
		Logger:    a.logger,
	})
	a.closers = append(a.closers, svc.Close)
	return svc, nil
}

func (a *app) scraper() (scrape.Scraper, error) {
	sc := a.cfg.Scrape
	switch sc.Mode {
	case "", "http":
		return scrape.NewHTTPScraper(integrations.NewHTTPFetcher(sc.Timeout.Duration), sc.Selector)
	case "browser":
		return scrape.NewBrowserScraper(sc.Selector, sc.Timeout.Duration, os.Getenv("CHROME_PATH"))
	}
	return nil, fmt.Errorf("unknown scrape mode %q (want http or browser)", sc.Mode)
}

// retriever indexes the configured data file. It returns nil when there is
// nothing to index or no embedding key, and questions then go without
// retrieved context.
func (a *app) retriever(ctx context.Context) query.Retriever {
	r := a.cfg.RAG
	if r.DataFile == "" {
		return nil
	}
	if _, err := os.Stat(r.DataFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("rag data file unreadable", "path", r.DataFile, "error", err)
		}
		return nil
	}
	key, err := config.ResolveAPIKey(a.cfg.LLM.APIKeySource, a.cfg.LLM.APIKey, config.EnvVarFor("openai"), "")
	if err != nil {
		a.logger.Warn("retrieval disabled: no embedding key", "error", err)
		return nil
	}
	embedder := rag.NewOpenAIEmbedder(key, a.cfg.Embeddings.Model, a.cfg.Embeddings.BaseURL)
	idx, err := rag.LoadFile(ctx, r.DataFile, embedder, rag.SplitConfig{ChunkSize: r.ChunkSize, ChunkOverlap: r.ChunkOverlap})
	if err != nil {
		a.logger.Warn("retrieval disabled: indexing failed", "path", r.DataFile, "error", err)
		return nil
	}
	a.logger.Info("rag index ready", "path", r.DataFile, "chunks", idx.Len())
	return idx
}

func (a *app) commits(ctx context.Context) (*commitsummary.Service, error) {
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	deps := commitsummary.Deps{
		Keys:      credentials.NewService(db),
		Commits:   db,
		Miner:     refactoring.NewMinerFromConfig(a.cfg.Refactoring, a.logger),
		Completer: integrations.NewCompleterFactory(a.cfg.LLM),
		Local:     a.workspace(),
	}
	if s, err := a.summarizer(); err == nil {
		deps.Summarizer = s
	} else {
		a.logger.Warn("repository summaries disabled", "error", err)
	}
	if s, err := a.scraper(); err == nil {
		deps.Scraper = s
	} else {
		a.logger.Warn("commit page scraping disabled", "error", err)
	}
	return commitsummary.New(deps, commitsummary.Options{
		Cache:       a.cfg.Server.CacheCommits,
		GitLabToken: os.Getenv(config.EnvVarFor("gitlab")),
		Logger:      a.logger,
	}), nil
}

func (a *app) questions(ctx context.Context) *query.Service {
	opts := query.Options{
		LLM:    a.cfg.LLM,
		TopK:   a.cfg.RAG.TopK,
		Logger: a.logger,
	}
	if r := a.retriever(ctx); r != nil {
		opts.Retriever = r
	}
	if s, err := a.scraper(); err == nil {
		opts.Scraper = s
	}
	return query.New(opts)
}

// runner prints command results in the --output format, styling markdown
// when stdout is a terminal.
func (a *app) runner() (*runner.CommandRunner, error) {
	return newRunner(a.out)
}

func newRunner(out io.Writer) (*runner.CommandRunner, error) {
	f, err := output.New(outputFlag)
	if err != nil {
		return nil, err
	}
	r := runner.NewCommandRunner(f, out)
	if _, isMarkdown := f.(*output.MarkdownFormatter); isMarkdown {
		if file, ok := out.(*os.File); ok {
			if md := tui.TerminalRenderer(file); md != nil {
				r.WithRenderer(md.Render)
			}
		}
	}
	return r, nil
}
