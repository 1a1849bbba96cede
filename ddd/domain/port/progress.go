package port

import (
	"context"

	"lingo-service/ddd/domain/vo"
)

// ProgressSink persists progress and the result reference of a running task.
// Writes against a task that is no longer RUNNING are silently ignored.
type ProgressSink interface {
	SaveProgress(ctx context.Context, taskID string, progress vo.Progress) error
	SaveResultRef(ctx context.Context, taskID, resultRef string) error
}

// StageGate is consulted before every stage; it returns fault.ErrCancelled once a
// cancellation has been requested for the task.
type StageGate interface {
	Checkpoint(ctx context.Context, taskID string, next vo.Stage) error
}
