package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/vo"
)

type pipelineFixture struct {
	extractor *fakeExtractor
	engine    *fakeEngine
	provider  *fakeProvider
	results   *memoryResults
	sink      *recordingSink
	pipeline  *PipelineService
}

func newPipelineFixture(duration time.Duration) *pipelineFixture {
	f := &pipelineFixture{
		extractor: &fakeExtractor{duration: duration},
		engine:    &fakeEngine{language: "en", confidence: 0.95},
		provider:  newFakeProvider("A"),
		results:   newMemoryResults(),
		sink:      &recordingSink{},
	}
	chain := NewTranslationChain(ChainConfig{MaxTextLength: 5000, FailureThreshold: 3, FailureWindow: time.Minute, Cooldown: time.Minute},
		newMapCache(), []ProviderSpec{{Provider: f.provider, Priority: 1}})
	f.pipeline = NewPipelineService(
		f.extractor,
		NewTranscriptionService(f.engine, TranscriptionConfig{LanguageConfidenceThreshold: 0.5}),
		chain,
		f.results,
		f.sink,
		f.sink,
		PipelineConfig{Extract: port.ExtractOptions{SampleRate: 16000, Mono: true, MaxChunkDuration: 5 * time.Minute}},
	)
	return f
}

// TestPipelineTwelveMinuteVideo runs the full pipeline over a 12 minute source.
func TestPipelineTwelveMinuteVideo(t *testing.T) {
	f := newPipelineFixture(12 * time.Minute)

	res, err := f.pipeline.Run(context.Background(), PipelineRequest{
		TaskID:   "t-1",
		MediaRef: "/media/talk.mp4",
		Options:  vo.TaskOptions{TargetLanguage: "es"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.engine.seen) != 3 {
		t.Fatalf("chunks transcribed = %d, want 3", len(f.engine.seen))
	}
	if res.Segments[0].Start != 0 || res.Segments[len(res.Segments)-1].End != 720 {
		t.Fatalf("timeline = %.0f..%.0f", res.Segments[0].Start, res.Segments[len(res.Segments)-1].End)
	}
	if res.TranslatedText == "" || res.ProviderUsed != "A" || res.TargetLanguage != "es" {
		t.Fatalf("translation missing: %+v", res)
	}
	if res.AudioDuration != 720 {
		t.Fatalf("audio duration = %.0f", res.AudioDuration)
	}
	if f.extractor.released.Load() != 1 {
		t.Fatalf("release calls = %d, want 1", f.extractor.released.Load())
	}
	if f.sink.ref != "result-t-1" {
		t.Fatalf("result ref = %q", f.sink.ref)
	}
	if _, err := f.results.Get(context.Background(), f.sink.ref); err != nil {
		t.Fatalf("stored result missing: %v", err)
	}

	want := []int{PercentExtracted, PercentTranscribed, PercentTranslated, PercentStored}
	if len(f.sink.progress) != len(want) {
		t.Fatalf("progress updates = %d, want %d", len(f.sink.progress), len(want))
	}
	for i, p := range f.sink.progress {
		if p.Percent != want[i] {
			t.Fatalf("progress[%d] = %d, want %d", i, p.Percent, want[i])
		}
	}
}

// TestPipelineSkipsTranslationForSameLanguage verifies no provider call when languages match.
func TestPipelineSkipsTranslationForSameLanguage(t *testing.T) {
	f := newPipelineFixture(time.Minute)

	res, err := f.pipeline.Run(context.Background(), PipelineRequest{TaskID: "t-2", Options: vo.TaskOptions{TargetLanguage: "EN"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.provider.calls.Load() != 0 || res.TranslatedText != "" {
		t.Fatalf("translation ran: calls=%d text=%q", f.provider.calls.Load(), res.TranslatedText)
	}
}

// TestPipelineNoSpeechSkipsTranslation verifies silent media succeeds without translation.
func TestPipelineNoSpeechSkipsTranslation(t *testing.T) {
	f := newPipelineFixture(time.Minute)
	f.engine.silent = map[int]bool{0: true}

	res, err := f.pipeline.Run(context.Background(), PipelineRequest{TaskID: "t-3", Options: vo.TaskOptions{TargetLanguage: "fr"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.NoSpeech || res.DetectedLanguage != vo.UnknownLanguage || f.provider.calls.Load() != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// TestPipelineCancelAtStageBoundary verifies a cancel request stops before the next stage.
func TestPipelineCancelAtStageBoundary(t *testing.T) {
	f := newPipelineFixture(12 * time.Minute)
	f.sink.cancelAt = vo.StageTranscription

	_, err := f.pipeline.Run(context.Background(), PipelineRequest{TaskID: "t-4", Options: vo.TaskOptions{TargetLanguage: "es"}})
	if !errors.Is(err, fault.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if len(f.engine.seen) != 0 {
		t.Fatalf("transcription ran after cancel")
	}
	if f.extractor.released.Load() != 1 {
		t.Fatalf("audio not released on cancel")
	}
	if f.sink.ref != "" {
		t.Fatalf("result stored after cancel")
	}
}

// TestPipelineExtractionFailureIsTagged verifies stage tagging of extraction errors.
func TestPipelineExtractionFailureIsTagged(t *testing.T) {
	f := newPipelineFixture(time.Minute)
	f.extractor.err = &fault.ExtractionError{Kind: fault.KindNoAudioTrack, Message: "no audio stream"}

	_, err := f.pipeline.Run(context.Background(), PipelineRequest{TaskID: "t-5"})
	if fault.KindOf(err) != fault.KindNoAudioTrack || fault.StageOf(err) != vo.StageExtraction {
		t.Fatalf("kind=%s stage=%s", fault.KindOf(err), fault.StageOf(err))
	}
}

// TestPipelineAllProvidersDown verifies translation failure aborts without a stored result.
func TestPipelineAllProvidersDown(t *testing.T) {
	f := newPipelineFixture(time.Minute)
	f.provider.fail.Store(true)

	_, err := f.pipeline.Run(context.Background(), PipelineRequest{TaskID: "t-6", Options: vo.TaskOptions{TargetLanguage: "es"}})
	if fault.KindOf(err) != fault.KindAllProvidersExhausted || fault.StageOf(err) != vo.StageTranslation {
		t.Fatalf("kind=%s stage=%s", fault.KindOf(err), fault.StageOf(err))
	}
	if f.sink.ref != "" || len(f.results.m) != 0 {
		t.Fatalf("partial result stored")
	}
	if f.extractor.released.Load() != 1 {
		t.Fatalf("audio not released on failure")
	}
}
