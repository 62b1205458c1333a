// Package tokenizer wraps tiktoken to provide exact token counting and
// token-window operations for chunking and budget enforcement.
package tokenizer

import (
	"fmt"
	"math"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the BPE encoding used for all token operations. Chunk
// boundaries are persisted, so changing this invalidates stored chunks.
const Encoding = "cl100k_base"

// DefaultCharsPerToken is the heuristic used where exact counting would be
// wasteful (LLM-format budget trimming).
const DefaultCharsPerToken = 4.0

// Tokenizer provides exact token counting backed by tiktoken
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New creates a tokenizer using the cl100k_base encoding
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", Encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the exact token count of text
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Encode returns the token ids for text
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode converts token ids back to text
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Truncate returns text cut to at most maxTokens tokens
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// Window is a fixed-size token slice of a larger text
type Window struct {
	Text       string
	TokenCount int
}

// Windows splits text into consecutive windows of size tokens each; the last
// window may be shorter. Deterministic for a fixed encoding.
func (t *Tokenizer) Windows(text string, size int) []Window {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	windows := make([]Window, 0, (len(tokens)+size-1)/size)
	for start := 0; start < len(tokens); start += size {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		windows = append(windows, Window{
			Text:       t.enc.Decode(tokens[start:end]),
			TokenCount: end - start,
		})
	}
	return windows
}

// EstimateTokens approximates the token count of text from a
// characters-per-token ratio. Used for budget trimming where the exact
// tokenizer would be called in a tight loop.
func EstimateTokens(text string, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}
