// Package chunker splits memory content into fixed-size token windows for
// fine-grained retrieval.
package chunker

import (
	"github.com/fikri/engram/pkg/tokenizer"
)

const (
	// DefaultChunkTokens is the token window size per chunk
	DefaultChunkTokens = 256
	// DefaultMinChunkTokens is the minimum content size that warrants chunking
	DefaultMinChunkTokens = 128
)

// Chunk is one token-bounded slice of a memory item's content
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// Result holds the outcome of chunking a piece of content
type Result struct {
	// ShouldChunk is false when the content fit in a single implicit chunk
	ShouldChunk bool
	Chunks      []Chunk
	TotalTokens int
}

// Chunker splits content into token windows using an exact tokenizer
type Chunker struct {
	tok         *tokenizer.Tokenizer
	chunkTokens int
	minTokens   int
}

// New creates a chunker. Zero sizes fall back to defaults.
func New(tok *tokenizer.Tokenizer, chunkTokens, minTokens int) *Chunker {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if minTokens <= 0 {
		minTokens = DefaultMinChunkTokens
	}
	return &Chunker{
		tok:         tok,
		chunkTokens: chunkTokens,
		minTokens:   minTokens,
	}
}

// ShouldChunk reports whether content is long enough to warrant chunking
func (c *Chunker) ShouldChunk(content string) bool {
	return c.tok.CountTokens(content) >= c.minTokens
}

// ChunkContent splits content into ordered fixed-size token windows. Content
// below the minimum is returned as a single implicit chunk with
// ShouldChunk=false. Deterministic for a fixed tokenizer encoding.
func (c *Chunker) ChunkContent(content string) Result {
	total := c.tok.CountTokens(content)

	if total < c.minTokens {
		return Result{
			ShouldChunk: false,
			Chunks: []Chunk{{
				Index:      0,
				Content:    content,
				TokenCount: total,
			}},
			TotalTokens: total,
		}
	}

	windows := c.tok.Windows(content, c.chunkTokens)
	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = Chunk{
			Index:      i,
			Content:    w.Text,
			TokenCount: w.TokenCount,
		}
	}

	return Result{
		ShouldChunk: true,
		Chunks:      chunks,
		TotalTokens: total,
	}
}
