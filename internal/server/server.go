// Package server exposes the commit summary, question answering and
// repository analysis services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/julianshen/commitpro/internal/analysis"
	"github.com/julianshen/commitpro/internal/commitsummary"
	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/credentials"
	"github.com/julianshen/commitpro/internal/query"
	"github.com/julianshen/commitpro/internal/summarizer"
)

const shutdownTimeout = 10 * time.Second

// Credentials manages app registrations.
type Credentials interface {
	Register(ctx context.Context) (string, error)
	SetGitHubKey(ctx context.Context, app, key string) error
	SetLLMKey(ctx context.Context, app, key string) error
	Keys(ctx context.Context, app string) (*credentials.Keys, error)
}

// Commits produces and looks up commit summaries.
type Commits interface {
	Summarize(ctx context.Context, req commitsummary.Request) (*commitsummary.Summary, error)
	Message(ctx context.Context, url, id string) (*commitsummary.Message, error)
	Refactorings(ctx context.Context, url, id, app string) (string, error)
}

// Questions answers free-form questions.
type Questions interface {
	Answer(ctx context.Context, req query.Request, token string) (string, error)
}

// RepoSummarizer describes a repository.
type RepoSummarizer interface {
	Summarize(ctx context.Context, repo string, opts summarizer.Options) (*summarizer.Summary, error)
}

// Analyses runs background metric analyses.
type Analyses interface {
	Start(ctx context.Context, repoURL string) (string, error)
	Status(ctx context.Context, repoURL string) analysis.JobStatus
	ResultPath(name string) (string, error)
}

// Deps are the services behind the routes. A nil service answers 503.
type Deps struct {
	Credentials Credentials
	Commits     Commits
	Questions   Questions
	Summarizer  RepoSummarizer
	Analyses    Analyses
}

// Options configure the HTTP layer.
type Options struct {
	Addr           string
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	AllowOrigin    string
	Logger         *slog.Logger
}

// OptionsFromConfig maps the [server] section onto Options.
func OptionsFromConfig(cfg config.ServerConfig, logger *slog.Logger) Options {
	return Options{
		Addr:           cfg.Addr,
		RequestTimeout: cfg.RequestTimeout.Duration,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		AllowOrigin:    cfg.AllowOrigin,
		Logger:         logger,
	}
}

// Server is the HTTP API.
type Server struct {
	deps      Deps
	opts      Options
	logger    *slog.Logger
	mux       *http.ServeMux
	handler   http.Handler
	greetings atomic.Int64
}

// New creates a Server with its routes and middleware installed.
func New(deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	s.handler = chain(s.mux,
		CORSMiddleware(opts.AllowOrigin),
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(opts.RateLimit, opts.RateBurst),
		TimeoutMiddleware(opts.RequestTimeout),
		RecoveryMiddleware(s.logger),
	)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", l.Addr().String())
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, l)
}
