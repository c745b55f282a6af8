// Package query answers free-form questions with the language model,
// optionally grounded in retrieved documents. A query that is a commit page
// URL is answered with a structured summary of that page.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/integrations"
	"github.com/julianshen/commitpro/internal/prompt"
	"github.com/julianshen/commitpro/internal/rag"
	"github.com/julianshen/commitpro/internal/scrape"
)

var (
	// ErrMissingToken is returned when the caller sent no bearer token.
	ErrMissingToken = errors.New("Missing Authorization header")
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
)

// Request is the body of a question.
type Request struct {
	Query  string `json:"query"`
	UseRAG bool   `json:"userag"`
}

// Retriever finds the documents most relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]rag.Match, error)
}

// Options configure a Service. Retriever and Scraper are optional.
type Options struct {
	LLM       config.LLMConfig
	Completer integrations.CompleterFactory
	Retriever Retriever
	Scraper   scrape.Scraper
	TopK      int
	Logger    *slog.Logger
}

// Service answers questions.
type Service struct {
	completer integrations.CompleterFactory
	retriever Retriever
	scraper   scrape.Scraper
	topK      int
	logger    *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Completer == nil {
		opts.Completer = integrations.NewCompleterFactory(opts.LLM)
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		completer: opts.Completer,
		retriever: opts.Retriever,
		scraper:   opts.Scraper,
		topK:      opts.TopK,
		logger:    opts.Logger,
	}
}

// BearerToken returns the credential of an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func isURL(q string) bool {
	return strings.HasPrefix(q, "https://") || strings.HasPrefix(q, "http://")
}

// Answer replies to req. token is the caller's bearer credential and is
// always the model key, whatever api_key_source says.
func (s *Service) Answer(ctx context.Context, req Request, token string) (string, error) {
	token = BearerToken(token)
	if token == "" {
		return "", ErrMissingToken
	}
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return "", ErrEmptyQuery
	}

	p, err := s.prompt(ctx, q, req.UseRAG)
	if err != nil {
		return "", err
	}

	completer, err := s.completer(token)
	if err != nil {
		return "", fmt.Errorf("creating llm client: %w", err)
	}
	answer, err := completer.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	s.logger.Debug("generated answer", "chars", len(answer))
	return answer, nil
}

func (s *Service) prompt(ctx context.Context, q string, useRAG bool) (string, error) {
	if isURL(q) && s.scraper != nil {
		text, err := s.scraper.Text(ctx, q)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", q, err)
		}
		return prompt.CommitFromChanges(text), nil
	}
	if !useRAG || s.retriever == nil {
		return prompt.Question(q), nil
	}
	matches, err := s.retriever.Search(ctx, q, s.topK)
	if err != nil {
		s.logger.Warn("document retrieval failed, answering without context", "error", err)
		return prompt.Question(q), nil
	}
	return prompt.QuestionWithContext(q, rag.Texts(matches)), nil
}
