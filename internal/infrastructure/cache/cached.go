package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"token-score-engine/internal/domain/repository"
	"token-score-engine/internal/infrastructure/logger"
)

// Cached memoizes expensive operations through a CacheStore. Keys embed
// every request parameter so requests that differ in any parameter never
// share an entry. Cache failures degrade to a direct fetch; a broken cache
// must never fail a scoring request.
type Cached struct {
	store  repository.CacheStore
	logger *logger.Logger
}

// NewCached wraps a cache store for operation memoization
func NewCached(store repository.CacheStore, logger *logger.Logger) *Cached {
	return &Cached{
		store:  store,
		logger: logger.WithComponent("cache"),
	}
}

// Key builds a cache key from an operation name and its parameters. The
// token address is lowercased so casing variants hit the same entry.
func Key(op, tokenAddress string, params ...any) string {
	parts := make([]string, 0, len(params)+2)
	parts = append(parts, op, strings.ToLower(tokenAddress))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%v", p))
	}
	return strings.Join(parts, ":")
}

// Do returns the cached value for key if present, otherwise invokes fn and
// caches its JSON encoding for ttl. The result is decoded into out, which
// must be a pointer.
func (c *Cached) Do(ctx context.Context, key string, ttl time.Duration, out any, fn func(ctx context.Context) (any, error)) error {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn(fmt.Sprintf("cache read failed for %s, fetching directly", key))
	} else if found {
		if err := json.Unmarshal(data, out); err == nil {
			return nil
		}
		// Undecodable entry: drop it and fall through to a fresh fetch
		_ = c.store.Delete(ctx, key)
	}

	value, err := fn(ctx)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	if err := c.store.Set(ctx, key, encoded, ttl); err != nil {
		c.logger.Warn(fmt.Sprintf("cache write failed for %s", key))
	}

	return json.Unmarshal(encoded, out)
}
