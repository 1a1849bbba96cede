// Package result stores finished task results with an expiration.
package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

// RedisResultStore keeps results as JSON values with a TTL. The reference is the
// task id, so re-running a task overwrites its previous result.
type RedisResultStore struct {
	client     *redis.Client
	prefix     string
	expiration time.Duration
}

func NewRedisResultStore(client *redis.Client, prefix string, expiration time.Duration) *RedisResultStore {
	return &RedisResultStore{client: client, prefix: prefix, expiration: expiration}
}

var _ repo.ResultStore = (*RedisResultStore)(nil)

func (s *RedisResultStore) Put(ctx context.Context, result *vo.TaskResult) (string, error) {
	if result == nil || result.TaskID == "" {
		return "", errors.New("result without task id")
	}
	body, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+result.TaskID, body, s.expiration).Err(); err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return result.TaskID, nil
}

func (s *RedisResultStore) Get(ctx context.Context, ref string) (*vo.TaskResult, error) {
	body, err := s.client.Get(ctx, s.prefix+ref).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrResultExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	var out vo.TaskResult
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &out, nil
}

func (s *RedisResultStore) Delete(ctx context.Context, ref string) error {
	return s.client.Del(ctx, s.prefix+ref).Err()
}
