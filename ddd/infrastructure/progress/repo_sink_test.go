package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/database/persistence"
)

func runningTask(t *testing.T, r *persistence.MemoryTaskRepository) *entity.TaskEntity {
	t.Helper()
	task := entity.NewTaskEntity("/in.mp4", vo.TaskOptions{})
	if err := task.Claim("w-1", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := r.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}
	return task
}

func TestProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	task := runningTask(t, r)
	sink := NewRepoSink(r)

	if err := sink.SaveProgress(ctx, task.TaskID(), vo.NewProgress(vo.StageTranscription, 75, "")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sink.SaveProgress(ctx, task.TaskID(), vo.NewProgress(vo.StageExtraction, 30, "")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := r.Get(ctx, task.TaskID())
	if got.Progress().Percent != 75 || got.Progress().Stage != vo.StageTranscription {
		t.Fatalf("progress = %+v, want 75/transcription", got.Progress())
	}
}

func TestWritesAfterTerminalStateAreIgnored(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	task := runningTask(t, r)
	sink := NewRepoSink(r)

	_, _ = r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error { return t.Cancel(time.Now()) })

	if err := sink.SaveProgress(ctx, task.TaskID(), vo.NewProgress(vo.StageTranslation, 95, "")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sink.SaveResultRef(ctx, task.TaskID(), "ref"); err != nil {
		t.Fatalf("save ref: %v", err)
	}
	got, _ := r.Get(ctx, task.TaskID())
	if got.ResultRef() != "" || got.Progress().Percent == 95 {
		t.Fatalf("cancelled task was modified: %+v", got.Snapshot())
	}
}

func TestCheckpointObservesCancelRequest(t *testing.T) {
	ctx := context.Background()
	r := persistence.NewMemoryTaskRepository()
	task := runningTask(t, r)
	sink := NewRepoSink(r)

	if err := sink.Checkpoint(ctx, task.TaskID(), vo.StageTranscription); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	_, _ = r.Update(ctx, task.TaskID(), func(t *entity.TaskEntity) error {
		t.RequestCancel(time.Now())
		return nil
	})
	if err := sink.Checkpoint(ctx, task.TaskID(), vo.StageTranslation); !errors.Is(err, fault.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}
