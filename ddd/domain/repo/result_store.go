package repo

import (
	"context"
	"errors"

	"lingo-service/ddd/domain/vo"
)

// ErrResultExpired is returned when a result reference no longer resolves.
var ErrResultExpired = errors.New("result not found or expired")

// ResultStore 结果存储，按引用读写并自带过期
type ResultStore interface {
	Put(ctx context.Context, result *vo.TaskResult) (string, error)
	Get(ctx context.Context, ref string) (*vo.TaskResult, error)
	Delete(ctx context.Context, ref string) error
}
