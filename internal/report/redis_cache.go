package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "ipcrawl:report:entry:"
	cacheOpTimeout = 5 * time.Second
)

// RedisCache shares resolved entries between runs and hosts. Keys are scoped
// by namespace, which identifies the block store the entries were resolved
// against. A TTL of zero keeps entries until they are evicted.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, namespace string, ttl time.Duration) *RedisCache {
	prefix := cacheKeyPrefix
	if namespace != "" {
		prefix += namespace + ":"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, address string) (Entry, bool, error) {
	opCtx, cancel := redisTimeoutCtx(ctx)
	defer cancel()

	data, err := c.client.Get(opCtx, c.key(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("report cache: get %s: %w", address, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("report cache: decode %s: %w", address, err)
	}
	return entry, true, nil
}

func (c *RedisCache) Set(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("report cache: encode %s: %w", entry.Address, err)
	}

	opCtx, cancel := redisTimeoutCtx(ctx)
	defer cancel()

	if err := c.client.Set(opCtx, c.key(entry.Address), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("report cache: set %s: %w", entry.Address, err)
	}
	return nil
}

// Purge drops every cached entry of the namespace, typically after the block
// store has been repopulated.
func (c *RedisCache) Purge(ctx context.Context) (int, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("report cache: scan: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	opCtx, cancel := redisTimeoutCtx(ctx)
	defer cancel()

	removed, err := c.client.Del(opCtx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("report cache: delete: %w", err)
	}
	return int(removed), nil
}

func (c *RedisCache) key(address string) string {
	return c.prefix + address
}

func redisTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, hasDeadline := ctx.Deadline(); hasDeadline && time.Until(deadline) <= cacheOpTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cacheOpTimeout)
}
