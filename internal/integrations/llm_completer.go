package integrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/provider"
)

const defaultMaxTokens = 4096

// Usage reports token counts for one completion when the provider supplies them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completer turns a prompt into reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFactory builds a Completer for an API key resolved per request.
type CompleterFactory func(apiKey string) (Completer, error)

// NewCompleterFactory returns a factory for the provider and model in cfg.
func NewCompleterFactory(cfg config.LLMConfig) CompleterFactory {
	return func(apiKey string) (Completer, error) {
		p, err := provider.New(cfg, apiKey)
		if err != nil {
			return nil, err
		}
		return NewLLMCompleter(p, cfg.Model).WithMaxTokens(cfg.MaxTokens), nil
	}
}

// LLMCompleter wraps an LLMProvider to collect streamed text into a single string.
type LLMCompleter struct {
	provider  provider.LLMProvider
	model     string
	maxTokens int
}

// NewLLMCompleter creates a new LLMCompleter.
func NewLLMCompleter(p provider.LLMProvider, model string) *LLMCompleter {
	return &LLMCompleter{provider: p, model: model, maxTokens: defaultMaxTokens}
}

// WithMaxTokens bounds the length of each reply. Values <= 0 keep the default.
func (c *LLMCompleter) WithMaxTokens(n int) *LLMCompleter {
	if n > 0 {
		c.maxTokens = n
	}
	return c
}

// Complete sends a prompt to the LLM and returns the full response text.
func (c *LLMCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	text, _, err := c.CompleteWithUsage(ctx, prompt)
	return text, err
}

// CompleteWithUsage is Complete plus the token counts reported on stop.
func (c *LLMCompleter) CompleteWithUsage(ctx context.Context, prompt string) (string, Usage, error) {
	req := provider.CompletionRequest{
		Model:     c.model,
		Messages:  []provider.Message{provider.NewUserMessage(prompt)},
		MaxTokens: c.maxTokens,
	}

	ch, err := c.provider.Stream(ctx, req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("llm complete: %w", err)
	}

	var (
		parts    []string
		usage    Usage
		firstErr error
	)
	// Drain the channel even after an error so the producer can exit.
	for evt := range ch {
		switch evt.Type {
		case "text_delta":
			parts = append(parts, evt.Text)
		case "stop":
			usage = Usage{InputTokens: evt.InputTokens, OutputTokens: evt.OutputTokens}
		case "error":
			if firstErr == nil {
				firstErr = evt.Error
			}
		}
	}
	if firstErr != nil {
		return "", usage, fmt.Errorf("llm stream error: %w", firstErr)
	}

	return strings.Join(parts, ""), usage, nil
}
