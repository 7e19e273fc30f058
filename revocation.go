package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlacklist implements RevocationCache on a shared Redis instance.
// Keys expire on their own; nothing is ever deleted explicitly.
type RedisBlacklist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBlacklist wraps client. All keys are namespaced under "bl:" so
// the instance can be shared with other subsystems.
func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client, prefix: "bl:"}
}

func (b *RedisBlacklist) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.prefix+key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func (b *RedisBlacklist) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, b.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return n > 0, nil
}
