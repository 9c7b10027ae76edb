// Package cache owns the process-wide Redis connection. Callers treat the
// cache as optional: a missing or unreachable Redis never blocks startup,
// callers fall back to recomputing.
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

var (
	redisOnce   sync.Once
	redisClient *redis.Client
	redisErr    error
)

func optionsFromEnv() *redis.Options {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			db = parsed
		}
	}

	return &redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

// GetRedisClient returns the shared Redis client, dialing it on first use.
// REDIS_ADDR defaults to localhost:6379; REDIS_PASSWORD and REDIS_DB are
// optional. The first failure is remembered for the life of the process.
func GetRedisClient() (*redis.Client, error) {
	redisOnce.Do(func() {
		opts := optionsFromEnv()
		client := redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			redisErr = fmt.Errorf("cache: ping redis %s failed: %w", opts.Addr, err)
			_ = client.Close()
			return
		}
		redisClient = client
	})

	return redisClient, redisErr
}

// Key builds a namespaced cache key from the given segments.
func Key(segments ...string) string {
	return "cortex:" + strings.Join(segments, ":")
}

// Enabled reports whether a usable Redis client was initialized.
func Enabled() bool {
	client, err := GetRedisClient()
	return err == nil && client != nil
}

// Close releases the shared Redis connection. Mainly useful for tests.
func Close() error {
	if redisClient == nil {
		return nil
	}
	return redisClient.Close()
}
