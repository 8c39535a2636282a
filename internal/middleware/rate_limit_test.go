package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func limitedApp(storage fiber.Storage, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID > 0 {
			c.Locals(LocalUserID, userID)
		}
		return c.Next()
	})
	app.Post("/auth/login", RateLimit("login", 2, time.Minute, storage), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	app := limitedApp(nil, 0)

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestRedisLimiterStorageSharesCounters(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage := NewRedisLimiterStorage(client, "test-limit")

	// two app instances behind one redis see the same budget
	first := limitedApp(storage, 5)
	second := limitedApp(storage, 5)

	resp, err := first.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = second.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = first.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	require.NotEmpty(t, server.Keys())
	require.NoError(t, storage.Reset())
	require.Empty(t, server.Keys())

	resp, err = second.Test(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRedisLimiterStorageMissingKey(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	storage := NewRedisLimiterStorage(client, "")

	value, err := storage.Get("absent")
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, storage.Set("present", []byte("1"), time.Minute))
	value, err = storage.Get("present")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)
	require.True(t, server.Exists("ratelimit:present"))
}
