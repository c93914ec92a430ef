package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	feedKeyPrefix = "feed:"
	// Entries outlive the freshness TTL so a stale value can still be served
	// when the broker rate-limits or fails.
	feedRetention = 24 * time.Hour
)

type RedisFeedCache struct {
	client *redis.Client
}

func NewRedisFeedCache(client *redis.Client) *RedisFeedCache {
	return &RedisFeedCache{client: client}
}

// Get returns the cached entry for feedKey, or ErrNotFound.
func (r *RedisFeedCache) Get(ctx context.Context, feedKey string) (*models.FeedEntry, error) {
	data, err := r.client.Get(ctx, feedCacheKey(feedKey)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed entry: %w", err)
	}

	var entry models.FeedEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed entry: %w", err)
	}
	return &entry, nil
}

func (r *RedisFeedCache) Set(ctx context.Context, feedKey string, entry models.FeedEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feed entry: %w", err)
	}

	if err := r.client.Set(ctx, feedCacheKey(feedKey), data, feedRetention).Err(); err != nil {
		return fmt.Errorf("failed to set feed entry: %w", err)
	}
	return nil
}

// Helper: build Redis key for a feed
func feedCacheKey(feedKey string) string {
	return feedKeyPrefix + feedKey
}

// MemoryFeedCache is the process-local cache used when no Redis is configured.
type MemoryFeedCache struct {
	mu      sync.RWMutex
	entries map[string]models.FeedEntry
}

func NewMemoryFeedCache() *MemoryFeedCache {
	return &MemoryFeedCache{entries: make(map[string]models.FeedEntry)}
}

func (m *MemoryFeedCache) Get(_ context.Context, feedKey string) (*models.FeedEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[feedKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *MemoryFeedCache) Set(_ context.Context, feedKey string, entry models.FeedEntry) error {
	m.mu.Lock()
	m.entries[feedKey] = entry
	m.mu.Unlock()
	return nil
}
