package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/engram/pkg/tokenizer"
)

func newTestChunker(t *testing.T, chunkTokens, minTokens int) *Chunker {
	tok, err := tokenizer.New()
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return New(tok, chunkTokens, minTokens)
}

// textWithTokens builds text with an exact token count. Each repetition of
// " word" encodes to one token in cl100k_base.
func textWithTokens(t *testing.T, c *Chunker, n int) string {
	text := strings.TrimSpace(strings.Repeat(" word", n))
	require.Equal(t, n, c.tok.CountTokens(text), "test fixture must have exact token count")
	return text
}

func TestShouldChunk_BelowMinimum(t *testing.T) {
	c := newTestChunker(t, 16, 32)

	// 40-token message with minimum 32 in a single-window setup
	text := textWithTokens(t, c, 20)
	assert.False(t, c.ShouldChunk(text))

	result := c.ChunkContent(text)
	assert.False(t, result.ShouldChunk)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, 0, result.Chunks[0].Index)
	assert.Equal(t, text, result.Chunks[0].Content)
}

func TestShouldChunk_AtMinimum(t *testing.T) {
	c := newTestChunker(t, 16, 32)
	assert.True(t, c.ShouldChunk(textWithTokens(t, c, 32)))
}

func TestChunkContent_FixedWindows(t *testing.T) {
	c := newTestChunker(t, 16, 32)

	// 200 tokens with a 16-token window: ceil(200/16) = 13 chunks, last 8 tokens
	text := textWithTokens(t, c, 200)
	result := c.ChunkContent(text)

	require.True(t, result.ShouldChunk)
	require.Len(t, result.Chunks, 13)

	for i, ch := range result.Chunks {
		assert.Equal(t, i, ch.Index)
		if i < 12 {
			assert.Equal(t, 16, ch.TokenCount)
		}
	}
	assert.Equal(t, 8, result.Chunks[12].TokenCount)
	assert.Equal(t, 200, result.TotalTokens)
}

func TestChunkContent_Idempotent(t *testing.T) {
	c := newTestChunker(t, 16, 32)
	text := textWithTokens(t, c, 100)

	first := c.ChunkContent(text)
	second := c.ChunkContent(text)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Content, second.Chunks[i].Content)
		assert.Equal(t, first.Chunks[i].TokenCount, second.Chunks[i].TokenCount)
	}
}

func TestNew_DefaultSizes(t *testing.T) {
	c := newTestChunker(t, 0, 0)
	assert.Equal(t, DefaultChunkTokens, c.chunkTokens)
	assert.Equal(t, DefaultMinChunkTokens, c.minTokens)
}
