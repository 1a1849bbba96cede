package events

import (
	"context"
	"errors"

	"lingo-service/ddd/domain/gateway"
	"lingo-service/pkg/logger"
)

// MultiPublisher fans an event out to every configured publisher. A failing
// publisher does not stop the others; the joined error is returned.
type MultiPublisher struct {
	publishers []gateway.TaskEventPublisher
}

func NewMultiPublisher(publishers ...gateway.TaskEventPublisher) *MultiPublisher {
	list := make([]gateway.TaskEventPublisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &MultiPublisher{publishers: list}
}

func (m *MultiPublisher) Publish(ctx context.Context, event gateway.TaskEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			logger.Warnf("Publish task event failed task_id=%s state=%s error=%v", event.TaskID, event.State, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len 已配置的发布者数量
func (m *MultiPublisher) Len() int { return len(m.publishers) }

// NopPublisher 未配置任何事件通道时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, gateway.TaskEvent) error { return nil }
