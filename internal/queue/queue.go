// Package queue implements the two ordered work queues connecting the
// pipeline stages. Both are Redis lists: LPUSH on the producer side, BRPOP
// with a timeout on the consumer side, so delivery is FIFO and each message
// reaches at most one consumer.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue names shared by the three workers.
const (
	// ListingQueue carries WorkItems from discovery to the scrapers.
	ListingQueue = "listing_queue"
	// DataQueue carries RawRecords from the scrapers to the writer.
	DataQueue = "data_queue"
	// DeadLetterQueue receives raw records whose batch could not be written.
	DeadLetterQueue = "data_queue:deadletter"
)

// ErrEmpty is returned by Pop when the timeout elapses with no message.
var ErrEmpty = errors.New("queue: no message available")

// Queue is a named Redis list holding JSON messages.
type Queue struct {
	client *redis.Client
	name   string
}

// New returns a queue bound to the given list name.
func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

// Name returns the underlying list name.
func (q *Queue) Name() string { return q.name }

// Push serializes v and appends it to the queue.
func (q *Queue) Push(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if pushErr := q.client.LPush(ctx, q.name, data).Err(); pushErr != nil {
		return fmt.Errorf("push to %s: %w", q.name, pushErr)
	}

	return nil
}

// Pop blocks for up to timeout waiting for a message, then decodes it into v.
// Returns ErrEmpty when nothing arrived; the caller re-checks its termination
// condition and pops again.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration, v any) error {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrEmpty
		}
		return fmt.Errorf("pop from %s: %w", q.name, err)
	}

	// BRPop returns [key, value].
	if len(res) != 2 {
		return fmt.Errorf("pop from %s: unexpected reply of %d elements", q.name, len(res))
	}

	if unmarshalErr := json.Unmarshal([]byte(res[1]), v); unmarshalErr != nil {
		return fmt.Errorf("decode message from %s: %w", q.name, unmarshalErr)
	}

	return nil
}

// Len returns the number of messages currently queued.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("len of %s: %w", q.name, err)
	}
	return n, nil
}
