// Package queue holds enrichment tasks in Redis: a ready list consumed with
// BRPOP and a sorted set of delayed retries scored by due time.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task asks for one ticket to be enriched. Attempt counts completed runs.
type Task struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// NewTask creates a first-attempt task for ticketID.
func NewTask(ticketID string) Task {
	return Task{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Stats reports queue depth.
type Stats struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
}

// promoteBatch bounds how many due tasks move per dequeue.
const promoteBatch = 100

var promoteDueScript = redis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, item in ipairs(items) do
    redis.call('ZREM', KEYS[1], item)
    redis.call('LPUSH', KEYS[2], item)
end
return #items
`)

// RedisQueue is a FIFO with delayed scheduling.
type RedisQueue struct {
	client     *redis.Client
	readyKey   string
	delayedKey string
	now        func() time.Time
}

// NewRedisQueue builds a queue whose keys share prefix.
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		readyKey:   prefix + ":ready",
		delayedKey: prefix + ":delayed",
		now:        time.Now,
	}
}

// Enqueue makes task available immediately.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue task for ticket %s: %w", task.TicketID, err)
	}
	return nil
}

// Schedule makes task available once at has passed.
func (q *RedisQueue) Schedule(ctx context.Context, task Task, at time.Time) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.ZAdd(ctx, q.delayedKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: payload,
	}).Err(); err != nil {
		return fmt.Errorf("schedule task for ticket %s: %w", task.TicketID, err)
	}
	return nil
}

// Dequeue promotes due delayed tasks and then blocks up to timeout for the
// next ready task. It returns nil, nil when nothing arrived.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	if _, err := q.PromoteDue(ctx); err != nil {
		return nil, err
	}

	res, err := q.client.BRPop(ctx, timeout, q.readyKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// PromoteDue moves delayed tasks whose time has come onto the ready list.
func (q *RedisQueue) PromoteDue(ctx context.Context) (int64, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteDueScript.Run(ctx, q.client, []string{q.delayedKey, q.readyKey}, now, promoteBatch).Int64()
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}
	return n, nil
}

// Stats returns the current ready and delayed counts.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.readyKey)
	delayed := pipe.ZCard(ctx, q.delayedKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Ready: ready.Val(), Delayed: delayed.Val()}, nil
}
