// Package embedding provides a uniform interface over interchangeable
// embedding backends, with dimension normalization, typed failure modes,
// and a content-hash cache.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Provider generates vector embeddings from text.
// Backends differ in native dimension and maximum input window; callers
// normalize output with Normalize and truncate input to MaxTokens.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	MaxTokens() int
	Name() string
}

// ProviderError wraps a backend failure, typed as retryable or permanent.
// Only retryable errors (rate limits, transient network faults) are retried
// by the job layer.
type ProviderError struct {
	Provider  string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s embedding error (%s): %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// retryableError marks err as safe to retry
func retryableError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err, Retryable: true}
}

// permanentError marks err as not worth retrying (bad input, auth)
func permanentError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err, Retryable: false}
}

// IsRetryable reports whether err should be retried by background workers.
// Untyped errors default to retryable so transient storage faults are not
// terminal.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}
