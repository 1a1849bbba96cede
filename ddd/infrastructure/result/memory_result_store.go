package result

import (
	"context"
	"errors"
	"sync"
	"time"

	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

type memoryEntry struct {
	result    vo.TaskResult
	expiresAt time.Time
}

// MemoryResultStore 进程内结果存储，过期在读取时判断
type MemoryResultStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	expiration time.Duration
	now        func() time.Time
}

func NewMemoryResultStore(expiration time.Duration) *MemoryResultStore {
	return &MemoryResultStore{entries: make(map[string]memoryEntry), expiration: expiration, now: time.Now}
}

func (s *MemoryResultStore) Put(_ context.Context, result *vo.TaskResult) (string, error) {
	if result == nil || result.TaskID == "" {
		return "", errors.New("result without task id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	e := memoryEntry{result: *result}
	if s.expiration > 0 {
		e.expiresAt = s.now().Add(s.expiration)
	}
	s.entries[result.TaskID] = e
	return result.TaskID, nil
}

func (s *MemoryResultStore) Get(_ context.Context, ref string) (*vo.TaskResult, error) {
	s.mu.RLock()
	e, ok := s.entries[ref]
	s.mu.RUnlock()
	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, repo.ErrResultExpired
	}
	out := e.result
	return &out, nil
}

func (s *MemoryResultStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ref)
	return nil
}

// sweep drops expired entries; caller holds the write lock.
func (s *MemoryResultStore) sweep() {
	now := s.now()
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
