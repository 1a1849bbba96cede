package service

import (
	"sync"
	"time"
)

// ProviderHealth tracks recent failures of one provider. It is an optimization for
// skipping known-bad providers, never a source of truth, and lives only in memory.
type ProviderHealth struct {
	mu            sync.Mutex
	threshold     int
	window        time.Duration
	cooldown      time.Duration
	failures      int
	windowStart   time.Time
	cooldownUntil time.Time
	lastError     string
}

// NewProviderHealth 创建健康状态；threshold 次失败（window 内）后进入 cooldown
func NewProviderHealth(threshold int, window, cooldown time.Duration) *ProviderHealth {
	if threshold <= 0 {
		threshold = 1
	}
	return &ProviderHealth{threshold: threshold, window: window, cooldown: cooldown}
}

// CoolingDown reports whether the provider must be skipped at now.
func (h *ProviderHealth) CoolingDown(now time.Time) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cooldownUntil, now.Before(h.cooldownUntil)
}

// RecordFailure counts a failure and opens the cooldown once the threshold is reached.
func (h *ProviderHealth) RecordFailure(now time.Time, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures == 0 || (h.window > 0 && now.Sub(h.windowStart) > h.window) {
		h.failures = 0
		h.windowStart = now
	}
	h.failures++
	h.lastError = reason
	if h.failures >= h.threshold {
		h.cooldownUntil = now.Add(h.cooldown)
	}
}

// RecordSuccess resets the failure count and closes any cooldown.
func (h *ProviderHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = 0
	h.cooldownUntil = time.Time{}
	h.lastError = ""
}

// Failures returns the current failure count.
func (h *ProviderHealth) Failures() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures
}

func (h *ProviderHealth) snapshot() (failures int, cooldownUntil time.Time, lastError string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failures, h.cooldownUntil, h.lastError
}
