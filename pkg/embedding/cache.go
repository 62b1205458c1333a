package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"
)

// CachedProvider wraps a Provider with an in-process ristretto cache keyed by
// content hash. Rechunking the same content (idempotent chunk rebuilds) then
// avoids repeated provider calls.
type CachedProvider struct {
	inner Provider
	cache *ristretto.Cache

	// OnHit and OnMiss are optional metric hooks
	OnHit  func()
	OnMiss func()
}

// NewCachedProvider wraps inner with a cache bounded to maxMB megabytes
func NewCachedProvider(inner Provider, maxMB int) (*CachedProvider, error) {
	if maxMB <= 0 {
		maxMB = 64
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     int64(maxMB) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &CachedProvider{
		inner: inner,
		cache: cache,
	}, nil
}

// Name returns the wrapped provider's name
func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

// Dimensions returns the wrapped provider's native dimension
func (p *CachedProvider) Dimensions() int {
	return p.inner.Dimensions()
}

// MaxTokens returns the wrapped provider's input window
func (p *CachedProvider) MaxTokens() int {
	return p.inner.MaxTokens()
}

// Embed returns the cached embedding for text, calling the backend on a miss
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.cacheKey(text)
	if v, ok := p.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			if p.OnHit != nil {
				p.OnHit()
			}
			return vec, nil
		}
	}

	if p.OnMiss != nil {
		p.OnMiss()
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.Set(key, vec, int64(len(vec)*4))
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and batching the rest
// through the backend in one call.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if v, ok := p.cache.Get(p.cacheKey(text)); ok {
			if vec, ok := v.([]float32); ok {
				if p.OnHit != nil {
					p.OnHit()
				}
				out[i] = vec
				continue
			}
		}
		if p.OnMiss != nil {
			p.OnMiss()
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	for j, vec := range vecs {
		i := missingIdx[j]
		out[i] = vec
		p.cache.Set(p.cacheKey(texts[i]), vec, int64(len(vec)*4))
	}

	return out, nil
}

// Wait blocks until pending cache writes are applied. Test helper; ristretto
// applies Set asynchronously.
func (p *CachedProvider) Wait() {
	p.cache.Wait()
}

func (p *CachedProvider) cacheKey(text string) string {
	h := sha256.Sum256([]byte(p.inner.Name() + "\x00" + text))
	return hex.EncodeToString(h[:])
}
