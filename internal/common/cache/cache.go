package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lunaexecutor-backend/internal/platform/redis"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	ProductsKey        = "cache:products"
	userStatsKeyPrefix = "cache:user_stats:"
)

func UserStatsKey(userID int64) string {
	return fmt.Sprintf("%s%d", userStatsKeyPrefix, userID)
}

// CacheService stores JSON values in Redis.
//
// Values written through GetOrSet live under "<key>:v<generation>". Invalidate
// bumps the generation, so a fill computed before the bump lands under a key
// no reader asks for again and simply expires.
type CacheService struct {
	redisClient redis.RedisClient
}

func NewCacheService(redisClient redis.RedisClient) *CacheService {
	return &CacheService{
		redisClient: redisClient,
	}
}

func generationKey(key string) string {
	return key + ":gen"
}

func versionedKey(key string, gen int64) string {
	return fmt.Sprintf("%s:v%d", key, gen)
}

// Generation returns the current generation of key, 0 when never invalidated.
func (c *CacheService) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.redisClient.Get(ctx, generationKey(key)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

// Get decodes key into dest; a missing key returns ErrCacheMiss
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.redisClient.Set(ctx, key, string(data), ttl).Err()
}

// GetOrSet reads key into dest, or calls setter and stores its result.
// The generation is read before setter runs. Cache failures do not fail the call.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error {
	gen, genErr := c.Generation(ctx, key)
	if genErr == nil {
		if err := c.Get(ctx, versionedKey(key, gen), dest); err == nil {
			return nil
		}
	}

	value, err := setter()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if genErr == nil {
		_ = c.redisClient.Set(ctx, versionedKey(key, gen), string(data), ttl).Err()
	}

	return json.Unmarshal(data, dest)
}

// Invalidate retires every value cached under key. Call it after the write
// it covers has committed.
func (c *CacheService) Invalidate(ctx context.Context, key string) error {
	return c.redisClient.Incr(ctx, generationKey(key)).Err()
}
