package rag

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// maxBatch bounds how many inputs go into one embeddings request.
const maxBatch = 256

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the SDK default.
func NewOpenAIEmbedder(apiKey, model, baseURL string, extra ...option.RequestOption) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbeddingAda002)
	}
	return &OpenAIEmbedder{client: openai.NewClient(opts...), model: model}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts[start:end]},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings request: %w", err)
		}
		for _, d := range resp.Data {
			i := start + int(d.Index)
			if i < start || i >= end {
				return nil, fmt.Errorf("embeddings response index %d out of range", d.Index)
			}
			out[i] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings response missing input %d", i)
		}
	}
	return out, nil
}
