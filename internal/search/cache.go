package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/arvind-menon/passage-retrieval-platform/internal/engine/tokenizer"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
	pkgredis "github.com/arvind-menon/passage-retrieval-platform/pkg/redis"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "search:"

// QueryCache caches full search responses in Redis. Identical queries issued
// concurrently are collapsed through singleflight so a cold key is computed
// once. Keys include the ranking parameters: the same text with a different
// k or min_score is a different cache entry. A circuit breaker around the
// Redis calls turns a down cache into uncached searches instead of per-query
// connection timeouts.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, req Request) (*Response, bool) {
	key := c.buildKey(req)
	var data string
	found := false
	err := c.breaker.Execute(func() error {
		got, getErr := c.client.Get(ctx, key)
		if getErr != nil {
			if pkgredis.IsNilError(getErr) {
				// A miss is a healthy response, not a Redis failure.
				return nil
			}
			return getErr
		}
		data = got
		found = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, req Request, resp *Response) {
	key := c.buildKey(req)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for req, or runs computeFn and
// caches its result. The second return reports whether the response came from
// cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	req Request,
	computeFn func() (*Response, error),
) (*Response, bool, error) {
	if resp, ok := c.Get(ctx, req); ok {
		return resp, true, nil
	}
	key := c.buildKey(req)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, req); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, req, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Response), false, nil
}

// Invalidate deletes every cached search response. Called when a rebuild
// publishes a new model: results scored against the old model must not
// outlive it.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

// HandleCacheInvalidate returns a Kafka handler that flushes the cache on
// invalidation announcements from the rebuild worker.
func (c *QueryCache) HandleCacheInvalidate() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		if err := c.Invalidate(ctx); err != nil {
			c.logger.Error("cache invalidation failed", "error", err)
		}
		return nil
	}
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(req Request) string {
	raw := normalizeRequest(req)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}

// normalizeRequest canonicalises a request so textually different queries
// with the same term set share a cache entry. Sorting is safe because
// ranking is order-insensitive over the deduplicated term set.
func normalizeRequest(req Request) string {
	terms := tokenizer.Tokenize(req.Query)
	seen := make(map[string]struct{}, len(terms))
	uniq := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		uniq = append(uniq, t)
	}
	sort.Strings(uniq)

	parts := []string{
		strings.Join(uniq, ","),
		"k=" + strconv.Itoa(req.K),
	}
	if req.Gated {
		parts = append(parts, "min="+strconv.FormatFloat(req.MinScore, 'g', -1, 64))
	}
	return strings.Join(parts, "|")
}
