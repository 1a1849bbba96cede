package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"lingo-service/pkg/logger"
)

const redisBlockTimeout = 2 * time.Second

// RedisTaskQueue is a reliable list queue: producers LPUSH onto the pending list,
// consumers BRPOPLPUSH into a per-worker processing list and LREM on ack. Entries
// left in a processing list after a crash are moved back by Recover.
type RedisTaskQueue struct {
	client     *redis.Client
	pending    string
	processing string
	closed     atomic.Bool
}

// NewRedisTaskQueue name is the pending list key; workerID scopes the processing list.
func NewRedisTaskQueue(client *redis.Client, name, workerID string) *RedisTaskQueue {
	return &RedisTaskQueue{
		client:     client,
		pending:    name,
		processing: name + ":processing:" + workerID,
	}
}

func (q *RedisTaskQueue) Enqueue(ctx context.Context, taskID string) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	return q.client.LPush(ctx, q.pending, taskID).Err()
}

func (q *RedisTaskQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if q.closed.Load() {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := q.client.BRPopLPush(ctx, q.pending, q.processing, redisBlockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrQueueClosed
			}
			return nil, err
		}
		return NewDelivery(id, func(ctx context.Context) error {
			return q.client.LRem(ctx, q.processing, 1, id).Err()
		}), nil
	}
}

func (q *RedisTaskQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.pending).Result()
}

// Recover moves unacknowledged entries of this worker back to the pending list.
func (q *RedisTaskQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.client.RPopLPush(ctx, q.processing, q.pending).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		logger.Infof("Recovered unacknowledged tasks queue=%s count=%d", q.pending, n)
	}
	return n, nil
}

// Close stops dequeuing; the client is owned by the redis resource.
func (q *RedisTaskQueue) Close() error {
	q.closed.Store(true)
	return nil
}
