package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
)

type fakeProvider struct {
	name  string
	calls atomic.Int64
	fail  atomic.Bool
	fn    func(text string) string
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, fn: strings.ToUpper}
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Translate(_ context.Context, text, _, _ string) (string, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return "", errors.New(p.name + " unreachable")
	}
	return p.fn(text), nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: map[string]string{}} }

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) PutIfAbsent(_ context.Context, key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[key]; ok {
		return false
	}
	c.m[key] = value
	return true
}

// fakeEngine emits one segment per 30 seconds of chunk audio.
type fakeEngine struct {
	language   string
	confidence float64
	silent     map[int]bool
	fail       error
	detects    atomic.Int64
	mu         sync.Mutex
	seen       []int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) DetectLanguage(_ context.Context, _ entity.MediaChunk, _ string) (port.LanguageGuess, error) {
	e.detects.Add(1)
	if e.fail != nil {
		return port.LanguageGuess{}, e.fail
	}
	return port.LanguageGuess{Language: e.language, Confidence: e.confidence}, nil
}

func (e *fakeEngine) Transcribe(_ context.Context, chunk entity.MediaChunk, language, _ string) (*port.ChunkTranscript, error) {
	e.mu.Lock()
	e.seen = append(e.seen, chunk.SequenceIndex)
	e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	if e.silent[chunk.SequenceIndex] {
		return &port.ChunkTranscript{NoSpeech: true}, nil
	}
	var segs []vo.TranscriptSegment
	total := chunk.Duration.Seconds()
	for start := 0.0; start < total; start += 30 {
		end := start + 30
		if end > total {
			end = total
		}
		segs = append(segs, vo.TranscriptSegment{
			Start:      start,
			End:        end,
			Text:       fmt.Sprintf("chunk %d at %.0f.", chunk.SequenceIndex, start),
			Confidence: 0.9,
		})
	}
	return &port.ChunkTranscript{Segments: segs, Language: language}, nil
}

// fakeExtractor cuts a virtual source of the given duration into chunks.
type fakeExtractor struct {
	duration time.Duration
	err      error
	released atomic.Int64
}

func (x *fakeExtractor) Extract(_ context.Context, _ string, opts port.ExtractOptions) (*port.ExtractedAudio, error) {
	if x.err != nil {
		return nil, x.err
	}
	var chunks []entity.MediaChunk
	for off, i := time.Duration(0), 0; off < x.duration; i++ {
		d := opts.MaxChunkDuration
		if off+d > x.duration {
			d = x.duration - off
		}
		chunks = append(chunks, entity.MediaChunk{SequenceIndex: i, StartOffset: off, Duration: d, PayloadRef: fmt.Sprintf("chunk-%d.wav", i)})
		off += d
	}
	return port.NewExtractedAudio(chunks, opts.SampleRate, x.duration, func() error {
		x.released.Add(1)
		return nil
	}), nil
}

type memoryResults struct {
	mu sync.Mutex
	m  map[string]*vo.TaskResult
}

func newMemoryResults() *memoryResults { return &memoryResults{m: map[string]*vo.TaskResult{}} }

func (r *memoryResults) Put(_ context.Context, res *vo.TaskResult) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := "result-" + res.TaskID
	r.m[ref] = res
	return ref, nil
}

func (r *memoryResults) Get(_ context.Context, ref string) (*vo.TaskResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.m[ref]
	if !ok {
		return nil, repo.ErrResultExpired
	}
	return res, nil
}

func (r *memoryResults) Delete(_ context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, ref)
	return nil
}

// recordingSink keeps progress in order and can request cancellation before a stage.
type recordingSink struct {
	mu       sync.Mutex
	progress []vo.Progress
	ref      string
	cancelAt vo.Stage
}

func (s *recordingSink) SaveProgress(_ context.Context, _ string, p vo.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
	return nil
}

func (s *recordingSink) SaveResultRef(_ context.Context, _ string, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ref = ref
	return nil
}

func (s *recordingSink) Checkpoint(_ context.Context, _ string, next vo.Stage) error {
	if s.cancelAt != "" && next == s.cancelAt {
		return fault.ErrCancelled
	}
	return nil
}
