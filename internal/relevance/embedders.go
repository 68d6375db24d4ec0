package relevance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobharvest/harvester/pkg/utils"
)

// SerialEmbedder guards an Embedder that is not safe for concurrent calls,
// so several source pipelines can share it.
type SerialEmbedder struct {
	mu    sync.Mutex
	inner Embedder
}

func NewSerialEmbedder(inner Embedder) *SerialEmbedder {
	return &SerialEmbedder{inner: inner}
}

func (s *SerialEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Embed(ctx, text)
}

// EmbeddingCache stores vectors by key.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// CachedEmbedder memoises another Embedder. Cache faults are logged and
// never fail an embedding.
type CachedEmbedder struct {
	inner     Embedder
	cache     EmbeddingCache
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCachedEmbedder keys entries by namespace, which should name the model.
func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, namespace string, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.namespace + ":" + utils.HashKey(text)

	vec, ok, err := c.cache.GetEmbedding(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	} else if ok {
		return vec, nil
	}

	vec, err = c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetEmbedding(ctx, key, vec, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}
