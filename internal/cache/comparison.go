// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// comparison.go provides a Valkey-backed scratch store for comparison
// payloads handed from one page to the next. Entries expire on their own
// and are readable only by the user who stored them.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// comparisonKeyPrefix is the Valkey key prefix for comparison payloads.
	comparisonKeyPrefix = "comparison:"

	// DefaultComparisonTTL is how long a stored payload stays readable.
	DefaultComparisonTTL = time.Hour
)

// ComparisonCache stores per-user comparison payloads in Valkey.
type ComparisonCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewComparisonCache creates a comparison cache backed by the given Valkey client.
func NewComparisonCache(client *redis.Client, ttl time.Duration) *ComparisonCache {
	if ttl == 0 {
		ttl = DefaultComparisonTTL
	}
	return &ComparisonCache{client: client, ttl: ttl}
}

// comparisonKey scopes key to userID, so a key leaked to another account
// reads as a miss.
func comparisonKey(userID uuid.UUID, key string) string {
	return fmt.Sprintf("%s%s:%s", comparisonKeyPrefix, userID, key)
}

// newKey returns a random URL-safe key with 16 bytes of entropy.
func newKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate cache key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Put stores data for userID and returns the key to read it back with.
func (c *ComparisonCache) Put(ctx context.Context, userID uuid.UUID, data json.RawMessage) (string, error) {
	key, err := newKey()
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, comparisonKey(userID, key), []byte(data), c.ttl).Err(); err != nil {
		return "", fmt.Errorf("store comparison: %w", err)
	}
	return key, nil
}

// Get returns the payload stored under key for userID. The bool is false
// when the key is unknown, expired or owned by someone else.
func (c *ComparisonCache) Get(ctx context.Context, userID uuid.UUID, key string) (json.RawMessage, bool, error) {
	val, err := c.client.Get(ctx, comparisonKey(userID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load comparison: %w", err)
	}
	return json.RawMessage(val), true, nil
}

// Purge removes every payload stored by userID.
func (c *ComparisonCache) Purge(ctx context.Context, userID uuid.UUID) {
	var cursor uint64
	var deleted int
	pattern := comparisonKey(userID, "*")
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("comparison cache scan error", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("comparison cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Debug("comparison cache purged", "user_id", userID, "deleted", deleted)
	}
}
