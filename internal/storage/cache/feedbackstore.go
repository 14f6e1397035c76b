// Package cache keeps APNS token feedback in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

// DefaultFeedbackTTL is how long an invalid token is remembered when no TTL is configured.
const DefaultFeedbackTTL = 30 * 24 * time.Hour

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns redis.Nil when the key does not exist.
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RedisFeedbackStore is a dispatch.FeedbackStore on top of a CacheClient.
// Entries expire after ttl so a reinstalled app gets a fresh chance.
type RedisFeedbackStore struct {
	cache CacheClient
	ttl   time.Duration
}

func NewRedisFeedbackStore(cache CacheClient, ttl time.Duration) *RedisFeedbackStore {
	if ttl <= 0 {
		ttl = DefaultFeedbackTTL
	}
	return &RedisFeedbackStore{cache: cache, ttl: ttl}
}

func (s *RedisFeedbackStore) MarkInvalid(ctx context.Context, inv dispatch.Invalidation) error {
	if err := s.cache.Set(ctx, cacheKey(inv.Token), inv, s.ttl); err != nil {
		return fmt.Errorf("failed to record invalid token: %w", err)
	}
	return nil
}

func (s *RedisFeedbackStore) IsInvalid(ctx context.Context, token string) (bool, error) {
	var inv dispatch.Invalidation
	err := s.cache.Get(ctx, cacheKey(token), &inv)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	}
	return false, fmt.Errorf("failed to look up token: %w", err)
}

// Lookup returns the stored record for token, or nil when there is none.
func (s *RedisFeedbackStore) Lookup(ctx context.Context, token string) (*dispatch.Invalidation, error) {
	var inv dispatch.Invalidation
	err := s.cache.Get(ctx, cacheKey(token), &inv)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *RedisFeedbackStore) Clear(ctx context.Context, token string) error {
	return s.cache.Del(ctx, cacheKey(token))
}

func cacheKey(token string) string {
	return fmt.Sprintf("apns:invalid:%s", token)
}
