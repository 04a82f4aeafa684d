// Package cache stores assistant answers in Redis so that the same question
// over the same passages is answered once. Concurrent identical questions
// share a single backend call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FJDaz/I-Am/internal/assistant"
	pkgredis "github.com/FJDaz/I-Am/pkg/redis"
)

const keyPrefix = "answer:"

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type AnswerCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "answer-cache"),
	}
}

// Key identifies an answer by the normalized search question and the
// labels of the passages sent with it, in rank order.
func Key(normalizedQuestion string, labels []string) string {
	raw := normalizedQuestion + "|" + strings.Join(labels, "\x1f")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *AnswerCache) Get(ctx context.Context, key string) (*assistant.Response, bool) {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp assistant.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &resp, true
}

func (c *AnswerCache) Set(ctx context.Context, key string, resp *assistant.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached answer for key, or calls compute once
// for all concurrent callers with the same key and caches its answer.
// Failures are never cached. The bool reports a cache hit.
//
// The shared call is detached from the cancellation of whichever caller
// started it and bounded by limit instead (no bound when limit <= 0). Each
// caller stops waiting when its own ctx is done; the call goes on for the
// others and its answer is still cached.
func (c *AnswerCache) GetOrCompute(
	ctx context.Context,
	key string,
	limit time.Duration,
	compute func(ctx context.Context) (*assistant.Reply, error),
) (*assistant.Reply, bool, error) {
	if resp, ok := c.Get(ctx, key); ok {
		return &assistant.Reply{Response: *resp}, true, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if limit > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, limit)
			defer cancel()
		}
		if resp, ok := c.Get(shared, key); ok {
			return &assistant.Reply{Response: *resp}, nil
		}
		reply, err := compute(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, key, &reply.Response)
		return reply, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*assistant.Reply), false, nil
	}
}

// Invalidate deletes every cached answer.
func (c *AnswerCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return deleted, nil
}

func (c *AnswerCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
