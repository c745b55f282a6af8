package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/julianshen/commitpro/internal/provider"
)

const defaultMaxTokens = 1024

func init() {
	provider.RegisterProvider("anthropic", func(opts provider.Options) provider.LLMProvider {
		return New(opts.BaseURL, opts.APIKey)
	})
}

// Provider implements the LLMProvider interface on top of the Anthropic
// Messages API. The reply is requested in one call and delivered as a single
// text_delta followed by stop.
type Provider struct {
	client anthropic.Client
}

// New creates a new Anthropic provider. An empty baseURL uses the SDK default.
func New(baseURL, apiKey string, extra ...option.RequestOption) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &Provider{client: anthropic.NewClient(opts...)}
}

// Stream implements provider.LLMProvider.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamEvent, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  buildMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("API error %d: %w", apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("sending request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	ch := make(chan provider.StreamEvent, 2)
	if text.Len() > 0 {
		ch <- provider.StreamEvent{Type: "text_delta", Text: text.String()}
	}
	ch <- provider.StreamEvent{
		Type:         "stop",
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}
	close(ch)
	return ch, nil
}

func buildMessages(msgs []provider.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Text())
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
