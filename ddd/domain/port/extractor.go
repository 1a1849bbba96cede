package port

import (
	"context"
	"sync"
	"time"

	"lingo-service/ddd/domain/entity"
)

// ExtractOptions controls audio normalization.
type ExtractOptions struct {
	SampleRate       int
	Mono             bool
	MaxChunkDuration time.Duration
}

// ExtractedAudio is a scoped set of chunk files. Release must be called once the
// consuming stage finishes; it is safe to call more than once.
type ExtractedAudio struct {
	Chunks         []entity.MediaChunk
	SampleRate     int
	SourceDuration time.Duration

	releaseOnce sync.Once
	release     func() error
	releaseErr  error
}

// NewExtractedAudio binds chunks to the cleanup of their backing storage.
func NewExtractedAudio(chunks []entity.MediaChunk, sampleRate int, source time.Duration, release func() error) *ExtractedAudio {
	return &ExtractedAudio{Chunks: chunks, SampleRate: sampleRate, SourceDuration: source, release: release}
}

// Release 释放临时存储
func (a *ExtractedAudio) Release() error {
	if a == nil {
		return nil
	}
	a.releaseOnce.Do(func() {
		if a.release != nil {
			a.releaseErr = a.release()
		}
	})
	return a.releaseErr
}

// AudioExtractor turns a media reference into ordered mono PCM chunks.
type AudioExtractor interface {
	Extract(ctx context.Context, mediaRef string, opts ExtractOptions) (*ExtractedAudio, error)
}
