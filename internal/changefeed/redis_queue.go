package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// RedisQueue implements core.ChangeQueue on a Redis list so buffered events
// survive a restart. Events are pushed with RPUSH and popped with LPOP.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	closed atomic.Bool
}

// NewRedisQueue creates a queue stored under key.
func NewRedisQueue(client redis.UniversalClient, key string) *RedisQueue {
	if key == "" {
		key = "docshelf:changes"
	}
	return &RedisQueue{client: client, key: key}
}

// Enqueue appends an event to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push change event: %w", err)
	}
	return nil
}

// Dequeue pops up to batchSize events. Undecodable entries are logged and skipped.
func (q *RedisQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	raw, err := q.client.LPopCount(ctx, q.key, batchSize).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop change events: %w", err)
	}

	events := make([]*core.ChangeEvent, 0, len(raw))
	for _, item := range raw {
		var event core.ChangeEvent
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			log.Printf("[CHANGEFEED] Skipping undecodable event in %s: %v", q.key, err)
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Size returns the list length, or 0 if Redis cannot be reached.
func (q *RedisQueue) Size() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close stops further enqueues and releases the client.
func (q *RedisQueue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	return q.client.Close()
}
