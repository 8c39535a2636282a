package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/coursetrack-api/internal/utils"
)

// RateLimit allows max requests per window, keyed by the authenticated user or else the
// client IP. A nil storage keeps counters in process memory.
func RateLimit(identifier string, max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := CurrentUserID(c); id > 0 {
				return fmt.Sprintf("%s:user:%d", identifier, id)
			}
			return fmt.Sprintf("%s:ip:%s", identifier, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%.0f", window.Seconds()))
			return utils.Fail(c, fiber.StatusTooManyRequests, "too many requests", fiber.Map{"retryAfterSeconds": int(window.Seconds())})
		},
	})
}

// RedisLimiterStorage shares limiter counters between API instances.
type RedisLimiterStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisLimiterStorage stores counters under prefix in client.
func NewRedisLimiterStorage(client *redis.Client, prefix string) *RedisLimiterStorage {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiterStorage{client: client, prefix: prefix + ":", timeout: 500 * time.Millisecond}
}

func (s *RedisLimiterStorage) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns nil without error for unknown keys, as fiber.Storage requires.
func (s *RedisLimiterStorage) Get(key string) ([]byte, error) {
	ctx, cancel := s.context()
	defer cancel()
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return value, err
}

func (s *RedisLimiterStorage) Set(key string, value []byte, exp time.Duration) error {
	if key == "" || len(value) == 0 {
		return nil
	}
	ctx, cancel := s.context()
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, value, exp).Err()
}

func (s *RedisLimiterStorage) Delete(key string) error {
	ctx, cancel := s.context()
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Reset removes every counter under the prefix.
func (s *RedisLimiterStorage) Reset() error {
	ctx, cancel := s.context()
	defer cancel()
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisLimiterStorage) Close() error {
	return nil
}
