package gateway

import (
	"context"
	"time"
)

// TaskEvent is emitted on every terminal transition of a task.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	State      string    `json:"state"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	ResultRef  string    `json:"result_ref,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TaskEventPublisher notifies downstream services about task outcomes.
type TaskEventPublisher interface {
	Publish(ctx context.Context, event TaskEvent) error
}
