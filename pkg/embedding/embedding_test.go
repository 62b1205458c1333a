package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		dim  int
	}{
		{"pad shorter", []float32{0.1, 0.2, 0.3}, 5},
		{"truncate longer", []float32{0.1, 0.2, 0.3, 0.4, 0.5}, 3},
		{"exact", []float32{0.1, 0.2}, 2},
		{"empty input", nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.vec, tt.dim)
			require.Len(t, out, tt.dim)

			// Leading entries preserved
			n := len(tt.vec)
			if n > tt.dim {
				n = tt.dim
			}
			for i := 0; i < n; i++ {
				assert.Equal(t, tt.vec[i], out[i])
			}

			// Remainder zero-padded
			for i := n; i < tt.dim; i++ {
				assert.Equal(t, float32(0), out[i])
			}
		})
	}
}

func TestNormalize_InvalidDim(t *testing.T) {
	assert.Nil(t, Normalize([]float32{1}, 0))
	assert.Nil(t, Normalize([]float32{1}, -3))
}

func TestMockProvider_Deterministic(t *testing.T) {
	p := NewMockProvider(384)
	ctx := context.Background()

	a, err := p.Embed(ctx, "hello")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)

	c, err := p.Embed(ctx, "different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestProviderError_Classification(t *testing.T) {
	retryable := retryableError("test", errors.New("rate limited"))
	permanent := permanentError("test", errors.New("bad input"))

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsRetryable(permanent))

	// Wrapped errors keep their classification
	assert.False(t, IsRetryable(fmt.Errorf("embed chunk: %w", permanent)))

	// Untyped errors default to retryable
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

func TestCachedProvider_Hit(t *testing.T) {
	inner := NewMockProvider(8)
	p, err := NewCachedProvider(inner, 1)
	require.NoError(t, err)

	hits, misses := 0, 0
	p.OnHit = func() { hits++ }
	p.OnMiss = func() { misses++ }

	ctx := context.Background()

	first, err := p.Embed(ctx, "same text")
	require.NoError(t, err)
	p.Wait()

	second, err := p.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, hits)
}

func TestCachedProvider_BatchMixed(t *testing.T) {
	inner := NewMockProvider(8)
	p, err := NewCachedProvider(inner, 1)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = p.Embed(ctx, "cached")
	require.NoError(t, err)
	p.Wait()

	out, err := p.EmbedBatch(ctx, []string{"cached", "fresh"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	want, _ := inner.Embed(ctx, "fresh")
	assert.Equal(t, want, out[1])
}

func TestCachedProvider_ErrorPassthrough(t *testing.T) {
	inner := NewMockProvider(8)
	inner.Fail = permanentError("mock", errors.New("boom"))

	p, err := NewCachedProvider(inner, 1)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "anything")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
