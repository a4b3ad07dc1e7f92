package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores resolved identities keyed by bearer token.
type Cache interface {
	Get(ctx context.Context, token string) (*Identity, bool)
	Set(ctx context.Context, token string, id *Identity)
}

// LRUCache is a process-local, size-bounded cache with per-entry TTL.
type LRUCache struct {
	lru *expirable.LRU[string, Identity]
}

// NewLRUCache creates an LRUCache holding at most size entries for ttl each.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 5000
	}
	return &LRUCache{lru: expirable.NewLRU[string, Identity](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, token string) (*Identity, bool) {
	id, ok := c.lru.Get(token)
	if !ok {
		return nil, false
	}
	return &id, true
}

func (c *LRUCache) Set(_ context.Context, token string, id *Identity) {
	c.lru.Add(token, *id)
}

// RedisCache shares resolved identities across replicas. Keys are token hashes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisCache creates a RedisCache.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "booking:identity:", logger: logger}
}

func (c *RedisCache) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, token string) (*Identity, bool) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("identity cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		c.logger.Warn("identity cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &id, true
}

func (c *RedisCache) Set(ctx context.Context, token string, id *Identity) {
	raw, err := json.Marshal(id)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(token), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("identity cache write failed", zap.Error(err))
	}
}

// TieredCache consults caches in order and back-fills the earlier tiers on a hit.
type TieredCache []Cache

func (t TieredCache) Get(ctx context.Context, token string) (*Identity, bool) {
	for i, c := range t {
		if id, ok := c.Get(ctx, token); ok {
			for _, earlier := range t[:i] {
				earlier.Set(ctx, token, id)
			}
			return id, true
		}
	}
	return nil, false
}

func (t TieredCache) Set(ctx context.Context, token string, id *Identity) {
	for _, c := range t {
		c.Set(ctx, token, id)
	}
}

// CachedVerifier memoizes successful verifications. Failures are never cached.
type CachedVerifier struct {
	next  Verifier
	cache Cache
}

// NewCachedVerifier wraps next with cache.
func NewCachedVerifier(next Verifier, cache Cache) *CachedVerifier {
	return &CachedVerifier{next: next, cache: cache}
}

func (v *CachedVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if id, ok := v.cache.Get(ctx, token); ok {
		return id, nil
	}
	id, err := v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	v.cache.Set(ctx, token, id)
	return id, nil
}
