package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tutorgrid/memory-api/internal/models"
)

// DefaultTTL is how long a cached profile stays valid without invalidation
const DefaultTTL = 5 * time.Minute

// ProfileCache is a Redis-backed read-through cache for user profiles. Every
// cache failure is treated as a miss; the store stays the source of truth.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProfileCache connects to Redis and returns a profile cache. ttl <= 0
// falls back to the default.
func NewProfileCache(redisURL string, ttl time.Duration, logger *zap.Logger) (*ProfileCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProfileCache{client: client, ttl: ttl, logger: logger}, nil
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// Get returns the cached profile for a user, or false on a miss
func (c *ProfileCache) Get(ctx context.Context, userID string) (*models.UserProfile, bool) {
	data, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("profile_cache_read_failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var profile models.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		c.logger.Warn("profile_cache_decode_failed", zap.String("user_id", userID), zap.Error(err))
		// Drop the poisoned entry so it is not decoded again
		c.client.Del(ctx, profileKey(userID))
		return nil, false
	}

	return &profile, true
}

// Set stores a profile with the configured TTL
func (c *ProfileCache) Set(ctx context.Context, userID string, profile *models.UserProfile) {
	data, err := json.Marshal(profile)
	if err != nil {
		c.logger.Warn("profile_cache_encode_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, profileKey(userID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("profile_cache_write_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate removes a user's cached profile after a mutation
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		c.logger.Warn("profile_cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Ping checks if Redis is reachable
func (c *ProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *ProfileCache) Close() error {
	return c.client.Close()
}

// Client exposes the underlying Redis client for middleware that shares the
// connection, such as the rate limiter.
func (c *ProfileCache) Client() *redis.Client {
	return c.client
}
