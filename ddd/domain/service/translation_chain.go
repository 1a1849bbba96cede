package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/vo"
	"lingo-service/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ProviderUsedCache is reported when a translation was served from the cache.
const ProviderUsedCache = "cache"

// ChainConfig 翻译链参数
type ChainConfig struct {
	MaxTextLength      int
	RateWaitTimeout    time.Duration
	FailureThreshold   int
	FailureWindow      time.Duration
	Cooldown           time.Duration
	SegmentConcurrency int
	// CallTimeout bounds one shared provider call, independent of any single caller.
	CallTimeout time.Duration
}

// ProviderSpec binds a provider to its priority and token bucket.
type ProviderSpec struct {
	Provider port.TranslationProvider
	Priority int
	Requests int
	Per      time.Duration
}

// TranslationResult 翻译结果
type TranslationResult struct {
	Text         string
	ProviderUsed string
}

// ProviderStatus is a point-in-time view of one provider.
type ProviderStatus struct {
	Name          string     `json:"name"`
	Priority      int        `json:"priority"`
	Available     bool       `json:"available"`
	Failures      int        `json:"failures"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

type chainMember struct {
	provider port.TranslationProvider
	priority int
	limiter  *rate.Limiter
	health   *ProviderHealth
}

// TranslationChain tries providers in priority order behind a shared cache.
type TranslationChain struct {
	cfg     ChainConfig
	members []*chainMember
	cache   port.TranslationCache
	flight  singleflight.Group
	now     func() time.Time
}

// NewTranslationChain orders providers by priority; equal priorities keep the given order.
func NewTranslationChain(cfg ChainConfig, cache port.TranslationCache, specs []ProviderSpec) *TranslationChain {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 5000
	}
	if cfg.SegmentConcurrency <= 0 {
		cfg.SegmentConcurrency = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	sorted := make([]ProviderSpec, len(specs))
	copy(sorted, specs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	members := make([]*chainMember, 0, len(sorted))
	for _, s := range sorted {
		limit := rate.Inf
		burst := 1
		if s.Requests > 0 && s.Per > 0 {
			limit = rate.Every(s.Per / time.Duration(s.Requests))
			burst = s.Requests
		}
		members = append(members, &chainMember{
			provider: s.Provider,
			priority: s.Priority,
			limiter:  rate.NewLimiter(limit, burst),
			health:   NewProviderHealth(cfg.FailureThreshold, cfg.FailureWindow, cfg.Cooldown),
		})
	}
	return &TranslationChain{cfg: cfg, members: members, cache: cache, now: time.Now}
}

// CacheKey builds the cache key from the source language, target language and text hash.
func CacheKey(text, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(text))
	return sourceLang + ":" + targetLang + ":" + hex.EncodeToString(sum[:])
}

// Translate renders text in targetLang. sourceLang may be empty or "auto".
func (c *TranslationChain) Translate(ctx context.Context, text, targetLang, sourceLang string) (*TranslationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &fault.TranslationError{Kind: fault.KindInvalidInput, Message: "empty text"}
	}
	targetLang = vo.NormalizeLanguage(targetLang)
	if targetLang == "" || targetLang == port.AutoLanguage {
		return nil, &fault.TranslationError{Kind: fault.KindInvalidInput, Message: "target language is required"}
	}
	sourceLang = vo.NormalizeLanguage(sourceLang)
	if sourceLang == "" || sourceLang == vo.UnknownLanguage {
		sourceLang = port.AutoLanguage
	}

	if utf8.RuneCountInString(text) <= c.cfg.MaxTextLength {
		return c.translateOne(ctx, text, sourceLang, targetLang)
	}
	return c.translateLong(ctx, text, sourceLang, targetLang)
}

func (c *TranslationChain) translateLong(ctx context.Context, text, sourceLang, targetLang string) (*TranslationResult, error) {
	key := CacheKey(text, sourceLang, targetLang)
	if v, ok := c.cache.Get(ctx, key); ok {
		return &TranslationResult{Text: v, ProviderUsed: ProviderUsedCache}, nil
	}

	pieces := SplitText(text, c.cfg.MaxTextLength)
	logger.Debugf("Splitting long text chars=%d pieces=%d", utf8.RuneCountInString(text), len(pieces))

	translated := make([]string, len(pieces))
	used := make([]string, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.SegmentConcurrency)
	for i := range pieces {
		g.Go(func() error {
			res, err := c.translateOne(gctx, pieces[i].Text, sourceLang, targetLang)
			if err != nil {
				return fmt.Errorf("segment %d/%d: %w", i+1, len(pieces), err)
			}
			translated[i] = res.Text
			used[i] = res.ProviderUsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &TranslationResult{Text: JoinPieces(pieces, translated), ProviderUsed: ProviderUsedCache}
	for _, u := range used {
		if u != ProviderUsedCache {
			out.ProviderUsed = u
			break
		}
	}
	c.cache.PutIfAbsent(ctx, key, out.Text)
	return out, nil
}

func (c *TranslationChain) translateOne(ctx context.Context, text, sourceLang, targetLang string) (*TranslationResult, error) {
	key := CacheKey(text, sourceLang, targetLang)
	if v, ok := c.cache.Get(ctx, key); ok {
		return &TranslationResult{Text: v, ProviderUsed: ProviderUsedCache}, nil
	}

	// 相同 key 的并发请求只调用一次外部服务。共享调用不继承任何调用方的取消，
	// 每个调用方只在自己的 ctx 上放弃等待。
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
		defer cancel()
		if cached, ok := c.cache.Get(callCtx, key); ok {
			return &TranslationResult{Text: cached, ProviderUsed: ProviderUsedCache}, nil
		}
		res, err := c.callProviders(callCtx, text, sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		c.cache.PutIfAbsent(callCtx, key, res.Text)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*TranslationResult)
		return &res, nil
	}
}

func (c *TranslationChain) callProviders(ctx context.Context, text, sourceLang, targetLang string) (*TranslationResult, error) {
	if len(c.members) == 0 {
		return nil, &fault.TranslationError{Kind: fault.KindAllProvidersExhausted, Message: "no providers configured"}
	}

	attempts := make([]fault.ProviderAttempt, 0, len(c.members))
	for _, m := range c.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := m.provider.Name()

		if until, cooling := m.health.CoolingDown(c.now()); cooling {
			attempts = append(attempts, fault.ProviderAttempt{
				Provider: name,
				Kind:     fault.KindProviderFailure,
				Reason:   "in cooldown until " + until.Format(time.RFC3339),
			})
			continue
		}

		if err := c.acquire(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			attempts = append(attempts, fault.ProviderAttempt{Provider: name, Kind: fault.KindRateLimited, Reason: err.Error()})
			logger.Debugf("Translation provider rate limited provider=%s", name)
			continue
		}

		out, err := m.provider.Translate(ctx, text, sourceLang, targetLang)
		if err == nil && strings.TrimSpace(out) == "" {
			err = errors.New("empty translation")
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.health.RecordFailure(c.now(), err.Error())
			attempts = append(attempts, fault.ProviderAttempt{Provider: name, Kind: fault.KindProviderFailure, Reason: err.Error()})
			logger.Warnf("Translation provider failed provider=%s source=%s target=%s error=%v", name, sourceLang, targetLang, err)
			continue
		}

		m.health.RecordSuccess()
		return &TranslationResult{Text: strings.TrimSpace(out), ProviderUsed: name}, nil
	}

	return nil, &fault.TranslationError{Kind: fault.KindAllProvidersExhausted, Attempts: attempts}
}

// acquire waits for a token, at most RateWaitTimeout.
func (c *TranslationChain) acquire(ctx context.Context, m *chainMember) error {
	if c.cfg.RateWaitTimeout <= 0 {
		if m.limiter.Allow() {
			return nil
		}
		return errors.New("rate limit bucket empty")
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.RateWaitTimeout)
	defer cancel()
	if err := m.limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// ProviderFailures returns the current failure count of the named provider.
func (c *TranslationChain) ProviderFailures(name string) int {
	for _, m := range c.members {
		if m.provider.Name() == name {
			return m.health.Failures()
		}
	}
	return 0
}

// ProviderStatus reports all providers in chain order.
func (c *TranslationChain) ProviderStatus() []ProviderStatus {
	now := c.now()
	out := make([]ProviderStatus, 0, len(c.members))
	for _, m := range c.members {
		failures, until, lastErr := m.health.snapshot()
		st := ProviderStatus{
			Name:      m.provider.Name(),
			Priority:  m.priority,
			Available: !now.Before(until),
			Failures:  failures,
			LastError: lastErr,
		}
		if now.Before(until) {
			u := until
			st.CooldownUntil = &u
		}
		out = append(out, st)
	}
	return out
}
