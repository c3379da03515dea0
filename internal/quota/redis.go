package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// counters outlive their period by a day so a client straddling the UTC
// rollover still reads a consistent value
const counterTTL = 48 * time.Hour

// RedisCounter implements the remote counter service on Redis.
type RedisCounter struct {
	client *redis.Client
}

// RedisConfig holds connection settings for the counter service.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCounter connects to Redis and verifies the connection.
func NewRedisCounter(cfg RedisConfig) (*RedisCounter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("quota counter unreachable: %w", err)
	}

	return &RedisCounter{client: client}, nil
}

func counterKey(userID, period string) string {
	return fmt.Sprintf("quota:%s:%s", userID, period)
}

// Count reads the counter; a missing key is zero, not an error.
func (c *RedisCounter) Count(ctx context.Context, userID, period string) (int, error) {
	return countValue(c.client.Get(ctx, counterKey(userID, period)).Int())
}

// countValue maps the GET result onto a count: a user who has never
// generated in the period has no key at all.
func countValue(n int, err error) (int, error) {
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota counter: %w", err)
	}
	return n, nil
}

// Increment bumps the counter atomically and returns the post-increment
// value. The TTL is (re)set so stale periods expire on their own.
func (c *RedisCounter) Increment(ctx context.Context, userID, period string) (int, error) {
	key := counterKey(userID, period)

	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment quota counter: %w", err)
	}
	if err := c.client.Expire(ctx, key, counterTTL).Err(); err != nil {
		return int(n), fmt.Errorf("set quota counter expiry: %w", err)
	}

	return int(n), nil
}

// Close releases the underlying connection pool.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}
