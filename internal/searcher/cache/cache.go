// Package cache memoises search results. Keys embed the index version, which
// is unique to one store and bumped by every mutation, so an entry can never
// be served after the index has changed or to a different index. Stale
// entries simply age out of the backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
)

const keyPrefix = "search:"

// computeTimeout bounds a shared computation started by a caller that had
// no deadline of its own.
const computeTimeout = 30 * time.Second

// ComputeFunc produces the results for a cache miss.
type ComputeFunc func(ctx context.Context) ([]document.SearchResult, error)

// Backend stores encoded result sets.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Purge(ctx context.Context) error
}

type QueryCache struct {
	backend Backend
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps backend. m may be nil.
func New(backend Backend, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the cached results for planKey at version, or runs
// compute once for all concurrent callers asking for the same key. The
// shared computation is detached from the cancellation of whichever caller
// started it but keeps that caller's deadline; each caller stops waiting
// when its own context ends. Backend failures are logged and fall through
// to compute.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	version string,
	planKey string,
	compute ComputeFunc,
) ([]document.SearchResult, bool, error) {
	key := buildKey(version, planKey)
	if results, ok := c.get(ctx, key); ok {
		c.recordHit()
		return results, true, nil
	}
	c.recordMiss()

	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := detach(ctx)
		defer cancel()
		results, err := compute(sctx)
		if err != nil {
			return nil, err
		}
		c.set(sctx, key, results)
		return results, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]document.SearchResult), false, nil
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(base, deadline)
	}
	return context.WithTimeout(base, computeTimeout)
}

// Invalidate drops every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if err := c.backend.Purge(ctx); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated")
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) ([]document.SearchResult, bool) {
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var results []document.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return results, true
}

func (c *QueryCache) set(ctx context.Context, key string, results []document.SearchResult) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(version, planKey string) string {
	hash := sha256.Sum256([]byte(planKey))
	return fmt.Sprintf("%s%s:%x", keyPrefix, version, hash[:16])
}
