package task

import (
	"context"
	"errors"
	"sync"

	"lingo-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (consumer, worker pool, recovery loop).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks  []BackgroundTask
	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	defaultManager = &manager{tasks: make([]BackgroundTask, 0)}
)

// Register adds a background task; should be called during assembly before StartAll.
func Register(task BackgroundTask) {
	if task == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, task)
}

// StartAll starts all registered tasks once. A failing task stops the ones already started.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defaultManager.cancel = cancel
	for i, t := range defaultManager.tasks {
		if err := t.Start(runCtx); err != nil {
			logger.Errorf("Background task start failed name=%s error=%v", t.Name(), err)
			for j := i - 1; j >= 0; j-- {
				_ = defaultManager.tasks[j].Stop()
			}
			cancel()
			defaultManager.cancel = nil
			return err
		}
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops all running tasks in reverse registration order.
func StopAll() error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel == nil {
		return nil
	}
	var errs []error
	for i := len(defaultManager.tasks) - 1; i >= 0; i-- {
		t := defaultManager.tasks[i]
		if err := t.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	defaultManager.cancel()
	defaultManager.cancel = nil
	return errors.Join(errs...)
}
