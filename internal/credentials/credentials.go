// Package credentials registers client apps and manages the GitHub and LLM
// keys each app stores with the service.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/julianshen/commitpro/internal/store"
)

// ErrUnknownApp is returned for a uuid that was never registered.
var ErrUnknownApp = errors.New("UUID not found")

// Keys holds the stored keys of an app. Missing keys are empty strings.
type Keys struct {
	GitHub string `json:"githubApiKey" yaml:"github_api_key"`
	LLM    string `json:"openaiLlmApiKey" yaml:"openai_llm_api_key"`
}

// Repository is the persistence the service needs.
type Repository interface {
	CreateApp(ctx context.Context, uuid string) error
	GetKeys(ctx context.Context, uuid string) (*store.APIKeys, error)
	SetGitHubKey(ctx context.Context, uuid, key string) error
	SetLLMKey(ctx context.Context, uuid, key string) error
}

// Service manages app registrations.
type Service struct {
	repo Repository
}

// NewService creates a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a new app and returns its uuid.
func (s *Service) Register(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.repo.CreateApp(ctx, id); err != nil {
		return "", fmt.Errorf("registering app: %w", err)
	}
	return id, nil
}

// SetGitHubKey stores the GitHub token of app.
func (s *Service) SetGitHubKey(ctx context.Context, app, key string) error {
	return mapNotFound(s.repo.SetGitHubKey(ctx, app, strings.TrimSpace(key)))
}

// SetLLMKey stores the LLM API key of app.
func (s *Service) SetLLMKey(ctx context.Context, app, key string) error {
	return mapNotFound(s.repo.SetLLMKey(ctx, app, strings.TrimSpace(key)))
}

// Keys returns the keys stored for app.
func (s *Service) Keys(ctx context.Context, app string) (*Keys, error) {
	if strings.TrimSpace(app) == "" {
		return nil, ErrUnknownApp
	}
	k, err := s.repo.GetKeys(ctx, app)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &Keys{GitHub: k.GitHub, LLM: k.LLM}, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownApp
	}
	return err
}

var classicGitHubToken = regexp.MustCompile(`^[a-zA-Z0-9]{40}$`)

// ValidGitHubKey reports whether key looks like a GitHub personal access
// token: a "ghp_" token or a classic 40 character alphanumeric one.
func ValidGitHubKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	return strings.HasPrefix(key, "ghp_") || classicGitHubToken.MatchString(key)
}

// ValidOpenAIKey reports whether key looks like an OpenAI API key.
func ValidOpenAIKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	return strings.HasPrefix(key, "sk-") && len(key) >= 20
}

// Mask hides all but the last four characters of a key for display.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}
