package embedding

import (
	"context"
)

// MockProvider generates deterministic embeddings for testing
type MockProvider struct {
	dimensions int

	// Fail forces every call to return this error when set
	Fail error
}

// NewMockProvider creates a mock provider with the given dimension
func NewMockProvider(dimensions int) *MockProvider {
	return &MockProvider{dimensions: dimensions}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// Dimensions returns the configured dimension
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// MaxTokens returns a small fixed window
func (p *MockProvider) MaxTokens() int {
	return 512
}

// Embed generates a deterministic embedding based on a text hash
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.Fail != nil {
		return nil, p.Fail
	}

	hash := 0
	for _, c := range text {
		hash = hash*31 + int(c)
	}

	embedding := make([]float32, p.dimensions)
	for i := 0; i < p.dimensions; i++ {
		embedding[i] = float32((hash+i)%100) / 100.0
	}
	return embedding, nil
}

// EmbedBatch generates deterministic embeddings for multiple texts
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
