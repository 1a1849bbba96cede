package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull 内存队列已满
	ErrQueueFull = errors.New("queue is full")
)

// Delivery is one dequeued task id. Ack must be called once the task reached a state
// that no longer needs the message (terminal, requeued, or skipped as a duplicate).
type Delivery struct {
	TaskID string
	ack    func(ctx context.Context) error
}

// NewDelivery binds a task id to its acknowledgement.
func NewDelivery(taskID string, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{TaskID: taskID, ack: ack}
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d == nil || d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// TaskQueue 任务队列接口。消息只携带任务 ID，任务本身在仓储中。
type TaskQueue interface {
	// Enqueue 入队任务
	Enqueue(ctx context.Context, taskID string) error
	// Dequeue 出队任务（阻塞），ctx 取消时返回 ctx.Err()
	Dequeue(ctx context.Context) (*Delivery, error)
	// Size 获取待处理任务数
	Size(ctx context.Context) (int64, error)
	// Close 关闭队列
	Close() error
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	MaxSize      int
	CurrentSize  int
}

// MemoryTaskQueue 基于内存的任务队列实现，进程退出即丢失，仅用于开发和测试
type MemoryTaskQueue struct {
	queue    chan string
	closed   bool
	mu       sync.RWMutex
	done     chan struct{}
	enqueued atomic.Uint64
	dequeued atomic.Uint64
}

// NewMemoryTaskQueue 创建内存任务队列
func NewMemoryTaskQueue(capacity int) *MemoryTaskQueue {
	if capacity <= 0 {
		capacity = 1000 // 默认容量
	}
	return &MemoryTaskQueue{
		queue: make(chan string, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue 入队任务
func (q *MemoryTaskQueue) Enqueue(ctx context.Context, taskID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if taskID == "" {
		return fmt.Errorf("task id cannot be empty")
	}

	select {
	case q.queue <- taskID:
		q.enqueued.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue 出队任务（阻塞）
func (q *MemoryTaskQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case id := <-q.queue:
		q.dequeued.Add(1)
		return NewDelivery(id, nil), nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size 获取队列大小
func (q *MemoryTaskQueue) Size(context.Context) (int64, error) {
	return int64(len(q.queue)), nil
}

// Close 关闭队列。未消费的任务留在仓储中，由恢复流程重新入队。
func (q *MemoryTaskQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// GetMetrics 获取队列指标
func (q *MemoryTaskQueue) GetMetrics() QueueMetrics {
	return QueueMetrics{
		EnqueueCount: q.enqueued.Load(),
		DequeueCount: q.dequeued.Load(),
		MaxSize:      cap(q.queue),
		CurrentSize:  len(q.queue),
	}
}
