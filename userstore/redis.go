package userstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultUsersKey is the set holding one member per user ID.
	DefaultUsersKey = "users"
	scanBatch       = 1000
)

// RedisCounter counts users stored in Redis, either as members of a set or as
// keys matching a pattern.
type RedisCounter struct {
	client  redis.UniversalClient
	key     string
	pattern string
}

// NewRedisSetCounter counts members of the set at key (SCARD).
func NewRedisSetCounter(client redis.UniversalClient, key string) (*RedisCounter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		key = DefaultUsersKey
	}
	return &RedisCounter{client: client, key: key}, nil
}

// NewRedisKeyCounter counts distinct keys matching pattern using SCAN, e.g.
// "user:*". On a cluster client every master is scanned.
func NewRedisKeyCounter(client redis.UniversalClient, pattern string) (*RedisCounter, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty key pattern", ErrCountUnavailable)
	}
	return &RedisCounter{client: client, pattern: pattern}, nil
}

// Count implements sampler.CountSource.
func (c *RedisCounter) Count(ctx context.Context) (int64, error) {
	if c.pattern == "" {
		n, err := c.client.SCard(ctx, c.key).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: scard %s: %w", ErrCountUnavailable, c.key, err)
		}
		return n, nil
	}

	if cluster, ok := c.client.(*redis.ClusterClient); ok {
		var (
			mu    sync.Mutex
			total int64
		)
		err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := scanCount(ctx, node, c.pattern)
			if err != nil {
				return err
			}
			mu.Lock()
			total += n
			mu.Unlock()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("%w: scan %s: %w", ErrCountUnavailable, c.pattern, err)
		}
		return total, nil
	}

	n, err := scanCount(ctx, c.client, c.pattern)
	if err != nil {
		return 0, fmt.Errorf("%w: scan %s: %w", ErrCountUnavailable, c.pattern, err)
	}
	return n, nil
}

// scanCount iterates a full SCAN. SCAN may return a key more than once, so
// keys are deduplicated.
func scanCount(ctx context.Context, client redis.Cmdable, pattern string) (int64, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0, err
		}
		for _, k := range keys {
			seen[k] = struct{}{}
		}
		if next == 0 {
			return int64(len(seen)), nil
		}
		cursor = next
	}
}
