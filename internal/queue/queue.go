package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice announces that a class's attendance changed for one date. The
// worker uses it to refresh the cached daily summary.
type Notice struct {
	Grade int    `json:"grade"`
	Class string `json:"class"`
	Date  string `json:"date"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, n Notice) error
	Consume(ctx context.Context) (<-chan Notice, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Notice
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Notice, size)}
}

// Publish enqueues a notice.
func (q *InMemory) Publish(ctx context.Context, n Notice) error {
	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Notice, error) {
	out := make(chan Notice)
	go func() {
		defer close(out)
		for {
			select {
			case n := <-q.ch:
				out <- n
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a simple Redis list-backed queue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "rollbook:attendance"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a notice.
func (q *RedisQueue) Publish(ctx context.Context, n Notice) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams notices using BRPOP.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Notice, error) {
	out := make(chan Notice)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var n Notice
			if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
				log.Printf("queue: drop malformed notice: %v", err)
				continue
			}
			out <- n
		}
	}()
	return out, nil
}
