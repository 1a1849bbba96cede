package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

func TestMemoryRepositoryClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	if err := r.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error {
				return t.Claim("w", time.Now())
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("claims won = %d, want 1", wins)
	}
	got, _ := r.Get(ctx, task.TaskID())
	if got.Attempts() != 1 || got.State() != vo.TaskStateRunning {
		t.Fatalf("task = %+v", got.Snapshot())
	}
}

func TestMemoryRepositoryNoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	_ = r.Create(ctx, task)

	got, err := r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error {
		t.RequestCancel(time.Now())
		return repo.ErrNoChange
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CancelRequested() {
		t.Fatal("ErrNoChange must discard the mutation")
	}
	stored, _ := r.Get(ctx, task.TaskID())
	if stored.CancelRequested() {
		t.Fatal("stored task was modified")
	}
}

func TestMemoryRepositoryMutatorErrorAborts(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	_ = r.Create(ctx, task)

	boom := errors.New("boom")
	if _, err := r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error {
		_ = t.Claim("w", time.Now())
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	stored, _ := r.Get(ctx, task.TaskID())
	if stored.State() != vo.TaskStatePending {
		t.Fatalf("state = %s, want PENDING", stored.State())
	}
	if _, err := r.Update(ctx, "missing", func(*entity.TaskEntity) error { return nil }); !errors.Is(err, repo.ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestMemoryRepositoryListByState(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryTaskRepository()
	for i := 0; i < 3; i++ {
		_ = r.Create(ctx, entity.NewTaskEntity("/in.mp4", vo.TaskOptions{}))
	}
	running := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	_ = running.Claim("w", time.Now())
	_ = r.Create(ctx, running)

	pending, _ := r.ListByState(ctx, vo.TaskStatePending, 0)
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}
	limited, _ := r.ListByState(ctx, vo.TaskStatePending, 2)
	if len(limited) != 2 {
		t.Fatalf("limited = %d, want 2", len(limited))
	}
	run, _ := r.ListByState(ctx, vo.TaskStateRunning, 0)
	if len(run) != 1 || run[0].TaskID() != running.TaskID() {
		t.Fatalf("running = %v", run)
	}
}
