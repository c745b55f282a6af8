package provider

import (
	"context"
	"testing"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	opts Options
}

func (s *stubProvider) Stream(_ context.Context, _ CompletionRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent)
	close(ch)
	return ch, nil
}

func TestNewUsesRegisteredConstructor(t *testing.T) {
	RegisterProvider("stub", func(opts Options) LLMProvider { return &stubProvider{opts: opts} })
	t.Cleanup(func() { delete(registry, "stub") })

	p, err := New(config.LLMConfig{Provider: "Stub", BaseURL: "http://llm.local"}, "sk-123")
	require.NoError(t, err)
	sp, ok := p.(*stubProvider)
	require.True(t, ok)
	assert.Equal(t, "http://llm.local", sp.opts.BaseURL)
	assert.Equal(t, "sk-123", sp.opts.APIKey)
	assert.Contains(t, Registered(), "stub")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "nope"}, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewRequiresKey(t *testing.T) {
	RegisterProvider("stub", func(opts Options) LLMProvider { return &stubProvider{opts: opts} })
	t.Cleanup(func() { delete(registry, "stub") })

	_, err := New(config.LLMConfig{Provider: "stub"}, "")
	assert.ErrorIs(t, err, config.ErrNoAPIKey)
}
