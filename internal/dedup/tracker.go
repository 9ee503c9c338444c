// Package dedup tracks which listing URLs have ever been enqueued. The set
// lives in Redis and is shared by all discovery instances; membership is
// permanent so a consumed URL is never rediscovered.
package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/DorusKeijzer/Woonitor/internal/logger"
)

const seenKey = "seen:listing_urls"

// Tracker is the shared deduplication set.
type Tracker struct {
	client *redis.Client
	logger logger.Logger
}

// NewTracker creates a tracker over the given Redis client.
func NewTracker(client *redis.Client, log logger.Logger) *Tracker {
	return &Tracker{client: client, logger: log}
}

// Add atomically inserts url into the set and reports whether it was new.
// SADD's return value is the check-and-insert: when two discovery instances
// race on the same URL, exactly one observes true.
func (t *Tracker) Add(ctx context.Context, url string) (bool, error) {
	added, err := t.client.SAdd(ctx, seenKey, url).Result()
	if err != nil {
		return false, fmt.Errorf("dedup add: %w", err)
	}
	return added == 1, nil
}

// Contains reports whether url was ever enqueued.
func (t *Tracker) Contains(ctx context.Context, url string) (bool, error) {
	ok, err := t.client.SIsMember(ctx, seenKey, url).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return ok, nil
}

// Size returns the number of URLs ever seen.
func (t *Tracker) Size(ctx context.Context) (int64, error) {
	n, err := t.client.SCard(ctx, seenKey).Result()
	if err != nil {
		return 0, fmt.Errorf("dedup size: %w", err)
	}
	return n, nil
}

// Clear drops the whole set. Used by the flush-dedup maintenance command.
func (t *Tracker) Clear(ctx context.Context) error {
	if err := t.client.Del(ctx, seenKey).Err(); err != nil {
		return fmt.Errorf("dedup clear: %w", err)
	}
	t.logger.Info("dedup set cleared", logger.String("key", seenKey))
	return nil
}
