package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/julianshen/commitpro/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTextResponse(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",
"content":[{"type":"text","text":"SUMMARY: refactors the parser"}],
"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":5}}`))
	}))
	defer server.Close()

	p := New(server.URL, "test-api-key", option.WithMaxRetries(0))
	var _ provider.LLMProvider = p

	ch, err := p.Stream(context.Background(), provider.CompletionRequest{
		Model:     "claude-sonnet-4-5",
		System:    "You summarize commits.",
		Messages:  []provider.Message{provider.NewUserMessage("Hi")},
		MaxTokens: 600,
	})
	require.NoError(t, err)

	var events []provider.StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "text_delta", events[0].Type)
	assert.Equal(t, "SUMMARY: refactors the parser", events[0].Text)
	assert.Equal(t, "stop", events[1].Type)
	assert.Equal(t, 10, events[1].InputTokens)
	assert.Equal(t, 5, events[1].OutputTokens)

	assert.Equal(t, "claude-sonnet-4-5", body["model"])
	assert.EqualValues(t, 600, body["max_tokens"])
	assert.NotNil(t, body["system"])
}

func TestStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`))
	}))
	defer server.Close()

	p := New(server.URL, "k", option.WithMaxRetries(0))
	_, err := p.Stream(context.Background(), provider.CompletionRequest{Model: "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestBuildMessagesRoles(t *testing.T) {
	msgs := buildMessages([]provider.Message{
		provider.NewUserMessage("q"),
		{Role: "assistant", Content: []provider.ContentBlock{{Type: "text", Text: "a"}}},
	})
	require.Len(t, msgs, 2)
	assert.EqualValues(t, "user", msgs[0].Role)
	assert.EqualValues(t, "assistant", msgs[1].Role)
}
