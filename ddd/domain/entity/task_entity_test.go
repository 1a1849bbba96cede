package entity

import (
	"testing"
	"time"

	"lingo-service/ddd/domain/vo"
)

// TestTaskLifecycle verifies the happy path PENDING -> RUNNING -> SUCCESS.
func TestTaskLifecycle(t *testing.T) {
	task := NewTaskEntity("/data/in.mp4", vo.TaskOptions{TargetLanguage: "es"})
	if !task.IsPending() || task.TaskID() == "" {
		t.Fatalf("new task = %+v", task.Snapshot())
	}
	now := time.Now()
	if err := task.Claim("w1", now); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if task.Attempts() != 1 || task.WorkerID() != "w1" {
		t.Fatalf("after claim attempts=%d worker=%s", task.Attempts(), task.WorkerID())
	}
	if err := task.Succeed("ref-1", now); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if task.ResultRef() != "ref-1" || task.Progress().Percent != 100 {
		t.Fatalf("after success = %+v", task.Snapshot())
	}
	if err := task.Fail(&vo.TaskError{Kind: "Internal"}, now); err == nil {
		t.Fatal("terminal task accepted a second transition")
	}
}

// TestProgressIsMonotonicAndIgnoredWhenTerminal verifies progress guards.
func TestProgressIsMonotonicAndIgnoredWhenTerminal(t *testing.T) {
	task := NewTaskEntity("in.wav", vo.TaskOptions{})
	if task.ApplyProgress(vo.NewProgress(vo.StageExtraction, 30, "")) {
		t.Fatal("pending task accepted progress")
	}
	_ = task.Claim("w1", time.Now())
	if !task.ApplyProgress(vo.NewProgress(vo.StageExtraction, 30, "")) {
		t.Fatal("running task rejected progress")
	}
	if task.ApplyProgress(vo.NewProgress(vo.StageExtraction, 10, "")) {
		t.Fatal("progress moved backwards")
	}
	_ = task.Cancel(time.Now())
	if task.ApplyProgress(vo.NewProgress(vo.StageTranscription, 75, "")) {
		t.Fatal("cancelled task accepted progress")
	}
}

// TestRequeueCountsOnlyFaults verifies graceful handoff does not consume the requeue budget.
func TestRequeueCountsOnlyFaults(t *testing.T) {
	task := NewTaskEntity("in.wav", vo.TaskOptions{})
	_ = task.Claim("w1", time.Now())
	if err := task.Requeue(false, time.Now()); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if task.Requeues() != 0 || !task.IsPending() {
		t.Fatalf("after handoff = %+v", task.Snapshot())
	}
	_ = task.Claim("w2", time.Now())
	_ = task.Requeue(true, time.Now())
	if task.Requeues() != 1 || task.Attempts() != 2 {
		t.Fatalf("after fault requeue = %+v", task.Snapshot())
	}
}

// TestRequeueClearsOnlyTimeoutCancel verifies a timeout cancel does not leak into the retry
// while a user cancel survives the requeue.
func TestRequeueClearsOnlyTimeoutCancel(t *testing.T) {
	task := NewTaskEntity("in.wav", vo.TaskOptions{})
	_ = task.Claim("w1", time.Now())
	if !task.RequestTimeoutCancel(time.Now()) {
		t.Fatal("timeout cancel rejected")
	}
	if task.UserCancelRequested() {
		t.Fatal("timeout cancel reported as user cancel")
	}
	_ = task.Requeue(true, time.Now())
	if task.CancelRequested() || task.TimeoutCancel() {
		t.Fatalf("timeout cancel survived requeue: %+v", task.Snapshot())
	}

	_ = task.Claim("w1", time.Now())
	_ = task.RequestTimeoutCancel(time.Now())
	if !task.RequestCancel(time.Now()) {
		t.Fatal("user cancel should upgrade a timeout cancel")
	}
	if task.RequestCancel(time.Now()) {
		t.Fatal("second user cancel accepted")
	}
	_ = task.Requeue(true, time.Now())
	if !task.UserCancelRequested() {
		t.Fatalf("user cancel lost on requeue: %+v", task.Snapshot())
	}
}
