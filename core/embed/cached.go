package embed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/siherrmann/wikigraph/helper"
)

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cache stores values by key with a time to live
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached memoizes the embeddings of another embedder.
// Cache failures are logged and bypassed.
type Cached struct {
	embedder Embedder
	cache    Cache
	ttl      time.Duration
	prefix   string
	logger   *slog.Logger
	metrics  *helper.Metrics
}

// NewCached wraps embedder with cache. prefix separates the keys of
// different embedding models.
func NewCached(embedder Embedder, cache Cache, prefix string, ttl time.Duration, logger *slog.Logger, metrics *helper.Metrics) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		embedder: embedder,
		cache:    cache,
		ttl:      ttl,
		prefix:   prefix,
		logger:   logger,
		metrics:  metrics,
	}
}

// Embed returns the cached embedding of text or computes and stores it
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := "embedding:" + c.prefix + ":" + helper.QueryHash(text)

	value, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Embedding cache lookup failed", slog.String("error", err.Error()))
	}
	if ok {
		var vector []float32
		if err := json.Unmarshal(value, &vector); err == nil {
			c.metrics.CacheLookup("embedding", true)
			return vector, nil
		}
	}
	c.metrics.CacheLookup("embedding", false)

	vector, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(vector)
	if err == nil {
		err = c.cache.Set(ctx, key, encoded, c.ttl)
	}
	if err != nil {
		c.logger.Warn("Embedding cache store failed", slog.String("error", err.Error()))
	}

	return vector, nil
}
