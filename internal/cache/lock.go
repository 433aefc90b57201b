// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sitesmith/internal/apperr"
)

const lockKeyPrefix = "lock:slug:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SlugLocks serializes writers of the same site across processes. A lock
// expires after its TTL even if the holder dies.
type SlugLocks struct {
	client *redis.Client
}

// NewSlugLocks creates a lock set backed by the given client.
func NewSlugLocks(client *redis.Client) *SlugLocks {
	return &SlugLocks{client: client}
}

// Acquire takes the lock for slug, failing with a conflict error when it
// is held. The returned func releases it.
func (l *SlugLocks) Acquire(ctx context.Context, slug string, ttl time.Duration) (func(), error) {
	key := lockKeyPrefix + slug
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", slug, err)
	}
	if !ok {
		return nil, apperr.Conflict("site %q is being changed by another request", slug)
	}

	return func() {
		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			slog.Warn("release slug lock", "slug", slug, "error", err)
		}
	}, nil
}
