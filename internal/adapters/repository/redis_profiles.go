// Package repository implements data persistence adapters
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-gateway/internal/core/domain"
	"whatsapp-gateway/internal/core/ports"
)

// Ensure RedisProfileCache implements ProfileCache
var _ ports.ProfileCache = (*RedisProfileCache)(nil)

// profileTTL keeps stale display names from lingering forever; a fresh
// contact entry on the next inbound message re-populates the key.
const profileTTL = 30 * 24 * time.Hour

// RedisProfileCache caches sender display names keyed by phone number.
// The cache is a convenience, never authoritative: every operation failure
// is logged and swallowed by callers so ingestion is never blocked.
type RedisProfileCache struct {
	client *redis.Client
}

// NewRedisProfileCache creates a new profile cache instance
func NewRedisProfileCache(client *redis.Client) *RedisProfileCache {
	return &RedisProfileCache{
		client: client,
	}
}

// Get returns the cached profile for a phone number, (nil, nil) on a miss.
func (r *RedisProfileCache) Get(ctx context.Context, number string) (*domain.Profile, error) {
	key := buildProfileKey(number)

	raw, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}

	if err != nil {
		slog.Error("Failed to read profile cache",
			"error", err,
			"number", number,
		)
		return nil, fmt.Errorf("get profile: %w", err)
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", key, err)
	}

	return &profile, nil
}

// Upsert stores or refreshes a profile entry with TTL.
func (r *RedisProfileCache) Upsert(ctx context.Context, profile *domain.Profile) error {
	key := buildProfileKey(profile.Number)

	profile.UpdatedAt = time.Now()
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := r.client.Set(ctx, key, raw, profileTTL).Err(); err != nil {
		slog.Error("Failed to write profile cache",
			"error", err,
			"number", profile.Number,
		)
		return fmt.Errorf("upsert profile: %w", err)
	}

	slog.Debug("Profile cached",
		"number", profile.Number,
		"profile_name", profile.ProfileName,
	)

	return nil
}

// buildProfileKey constructs the Redis key for a profile entry
func buildProfileKey(number string) string {
	return fmt.Sprintf("profile:%s", domain.FormatNumber(number))
}
