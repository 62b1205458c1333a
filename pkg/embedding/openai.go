package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider backed by the OpenAI embeddings API
type OpenAIProvider struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates an OpenAI embedding provider. Supported models
// are text-embedding-3-small (1536 dims) and text-embedding-3-large (3072
// dims); unknown models default to 1536.
func NewOpenAIProvider(apiKey, model string, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	dimensions := 1536
	if model == string(openai.EmbeddingModelTextEmbedding3Large) {
		dimensions = 3072
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAIProvider{
		client:     openai.NewClient(clientOpts...),
		model:      model,
		dimensions: dimensions,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Dimensions returns the model's native embedding dimension
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// MaxTokens returns the maximum input window in tokens
func (p *OpenAIProvider) MaxTokens() int {
	return 8191
}

// Embed generates an embedding for a single text
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, p.classify(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, permanentError(p.Name(),
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	embeddings := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		embeddings[d.Index] = vec
	}

	return embeddings, nil
}

// classify types an API failure as retryable or permanent
func (p *OpenAIProvider) classify(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		// Rate limits and server faults are transient; auth and bad
		// requests are not.
		if apierr.StatusCode == 429 || apierr.StatusCode >= 500 {
			return retryableError(p.Name(), err)
		}
		return permanentError(p.Name(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retryableError(p.Name(), err)
	}

	return retryableError(p.Name(), err)
}
