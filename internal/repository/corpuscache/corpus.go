// Package corpuscache caches ledger descriptions in the key-value store.
// Ledger records never change once written, so a cached description stays valid
// until its TTL expires.
package corpuscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ipregistry/internal/db"
)

// Corpus is the wrapped description source.
type Corpus interface {
	Count(ctx context.Context) (int, error)
	Description(ctx context.Context, index int) (string, error)
}

// store is the consumer interface for the description cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedCorpus is a read-through cache in front of a Corpus. Count is never cached.
type CachedCorpus struct {
	inner      Corpus
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// namespace identifies the ledger (for example its contract address) so caches of
// different ledgers never mix. cacheTotal has label "result" ("hit"/"miss") and may be nil.
func New(
	inner Corpus,
	s store,
	prefix, namespace string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedCorpus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCorpus{
		inner:      inner,
		store:      s,
		keyPrefix:  prefix + "corpus:" + namespace + ":",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Count delegates to the inner corpus.
func (c *CachedCorpus) Count(ctx context.Context) (int, error) {
	return c.inner.Count(ctx)
}

// Description returns a cached description or reads it from the inner corpus.
// Cache failures degrade to an uncached read.
func (c *CachedCorpus) Description(ctx context.Context, index int) (string, error) {
	key := c.keyPrefix + strconv.Itoa(index)

	if text, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return text, nil
	}

	c.incCache("miss")

	text, err := c.inner.Description(ctx, index)
	if err != nil {
		return "", fmt.Errorf("read description %d: %w", index, err)
	}

	c.putToCache(ctx, key, text)
	return text, nil
}

func (c *CachedCorpus) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedCorpus) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached description", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *CachedCorpus) putToCache(ctx context.Context, key, text string) {
	if text == "" {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("Failed to cache description", zap.String("key", key), zap.Error(err))
	}
}
