package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/vo"
)

func twelveMinuteChunks() []entity.MediaChunk {
	return []entity.MediaChunk{
		{SequenceIndex: 2, StartOffset: 10 * time.Minute, Duration: 2 * time.Minute},
		{SequenceIndex: 0, StartOffset: 0, Duration: 5 * time.Minute},
		{SequenceIndex: 1, StartOffset: 5 * time.Minute, Duration: 5 * time.Minute},
	}
}

// TestTranscribeShiftsAndOrdersChunks verifies chunk order, offsets and single detection.
func TestTranscribeShiftsAndOrdersChunks(t *testing.T) {
	engine := &fakeEngine{language: "en", confidence: 0.93}
	svc := NewTranscriptionService(engine, TranscriptionConfig{LanguageConfidenceThreshold: 0.5})

	tr, err := svc.Transcribe(context.Background(), twelveMinuteChunks(), "", "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if engine.detects.Load() != 1 {
		t.Fatalf("detect calls = %d, want 1", engine.detects.Load())
	}
	if got := engine.seen; len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("chunk order = %v", got)
	}
	if len(tr.Segments) != 24 {
		t.Fatalf("segments = %d, want 24", len(tr.Segments))
	}
	first, last := tr.Segments[0], tr.Segments[len(tr.Segments)-1]
	if first.Start != 0 || last.End != 720 {
		t.Fatalf("timeline = %.0f..%.0f, want 0..720", first.Start, last.End)
	}
	for i := 1; i < len(tr.Segments); i++ {
		if tr.Segments[i].Start < tr.Segments[i-1].Start {
			t.Fatalf("segment %d starts before its predecessor", i)
		}
	}
	if tr.DetectedLanguage != "en" || tr.LowConfidenceLanguage {
		t.Fatalf("language = %s low=%v", tr.DetectedLanguage, tr.LowConfidenceLanguage)
	}
}

// TestTranscribeFlagsLowConfidenceLanguage verifies the threshold comparison.
func TestTranscribeFlagsLowConfidenceLanguage(t *testing.T) {
	engine := &fakeEngine{language: "es", confidence: 0.3}
	svc := NewTranscriptionService(engine, TranscriptionConfig{LanguageConfidenceThreshold: 0.5})

	tr, err := svc.Transcribe(context.Background(), twelveMinuteChunks()[1:2], "", "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !tr.LowConfidenceLanguage || tr.LanguageConfidence != 0.3 {
		t.Fatalf("low confidence not flagged: %+v", tr)
	}
}

// TestTranscribeLanguageHintSkipsDetection verifies that a hint is used as given.
func TestTranscribeLanguageHintSkipsDetection(t *testing.T) {
	engine := &fakeEngine{language: "en", confidence: 0.9}
	svc := NewTranscriptionService(engine, TranscriptionConfig{})

	tr, err := svc.Transcribe(context.Background(), twelveMinuteChunks()[1:2], "German", "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if engine.detects.Load() != 0 || tr.DetectedLanguage != "de" {
		t.Fatalf("detects=%d language=%s", engine.detects.Load(), tr.DetectedLanguage)
	}
}

// TestTranscribeNoSpeechIsNotAnError verifies the empty transcript shape.
func TestTranscribeNoSpeechIsNotAnError(t *testing.T) {
	engine := &fakeEngine{language: "en", confidence: 0.9, silent: map[int]bool{0: true, 1: true, 2: true}}
	svc := NewTranscriptionService(engine, TranscriptionConfig{})

	tr, err := svc.Transcribe(context.Background(), twelveMinuteChunks(), "", "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !tr.NoSpeech || tr.FullText != "" || len(tr.Segments) != 0 || tr.DetectedLanguage != vo.UnknownLanguage {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
}

// TestTranscribeEngineFailure verifies engine errors map to EngineUnavailable.
func TestTranscribeEngineFailure(t *testing.T) {
	engine := &fakeEngine{fail: errors.New("model file missing")}
	svc := NewTranscriptionService(engine, TranscriptionConfig{})

	_, err := svc.Transcribe(context.Background(), twelveMinuteChunks(), "", "")
	if fault.KindOf(err) != fault.KindEngineUnavailable {
		t.Fatalf("kind = %s, want EngineUnavailable (err=%v)", fault.KindOf(err), err)
	}
}

// TestShiftSegmentsClampsToChunk verifies clamping, empty-text removal and a minimal span for
// zero-length or reversed segments.
func TestShiftSegmentsClampsToChunk(t *testing.T) {
	chunk := entity.MediaChunk{StartOffset: 60 * time.Second, Duration: 10 * time.Second}
	in := []vo.TranscriptSegment{
		{Start: 4, End: 12, Text: " tail "},
		{Start: 0, End: 2, Text: "  "},
		{Start: 2, End: 1, Text: "reversed"},
		{Start: 11, End: 13, Text: "outside"},
		{Start: 5, End: 5, Text: "point"},
		{Start: 9.999, End: 9.999, Text: "edge"},
	}
	out := shiftSegments(in, chunk)
	if len(out) != 4 {
		t.Fatalf("segments = %+v, want 4", out)
	}
	span := func(s vo.TranscriptSegment) float64 { return s.End - s.Start }
	if out[0].Text != "reversed" || out[0].Start != 62 || span(out[0]) <= 0 || span(out[0]) > 0.011 {
		t.Fatalf("first = %+v", out[0])
	}
	if out[1].Text != "tail" || out[1].Start != 64 || out[1].End != 70 {
		t.Fatalf("second = %+v", out[1])
	}
	if out[2].Text != "point" || out[2].Start != 65 || span(out[2]) <= 0 || span(out[2]) > 0.011 {
		t.Fatalf("third = %+v", out[2])
	}
	if out[3].Text != "edge" || out[3].End != 70 || span(out[3]) <= 0 {
		t.Fatalf("fourth = %+v", out[3])
	}
}
