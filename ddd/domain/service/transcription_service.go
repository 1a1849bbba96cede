package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/vo"
	"lingo-service/pkg/logger"
)

// TranscriptionConfig 识别参数
type TranscriptionConfig struct {
	DefaultProfile              string
	LanguageConfidenceThreshold float64
}

// TranscriptionService merges per-chunk transcripts into a single timeline.
type TranscriptionService struct {
	engine port.SpeechEngine
	cfg    TranscriptionConfig
}

func NewTranscriptionService(engine port.SpeechEngine, cfg TranscriptionConfig) *TranscriptionService {
	if cfg.LanguageConfidenceThreshold <= 0 {
		cfg.LanguageConfidenceThreshold = 0.5
	}
	return &TranscriptionService{engine: engine, cfg: cfg}
}

// Transcribe runs the engine over chunks in sequence order. Language is detected on
// the first chunk only and reused for the rest; languageHint skips detection.
func (s *TranscriptionService) Transcribe(ctx context.Context, chunks []entity.MediaChunk, languageHint, profile string) (*vo.Transcript, error) {
	if len(chunks) == 0 {
		return vo.NoSpeechTranscript(), nil
	}
	if profile == "" {
		profile = s.cfg.DefaultProfile
	}

	ordered := make([]entity.MediaChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SequenceIndex < ordered[j].SequenceIndex })

	language := vo.NormalizeLanguage(languageHint)
	confidence := 1.0
	if language == "" || language == port.AutoLanguage {
		guess, err := s.engine.DetectLanguage(ctx, ordered[0], profile)
		if err != nil {
			return nil, s.engineError(ctx, "language detection failed", err)
		}
		language = vo.NormalizeLanguage(guess.Language)
		confidence = guess.Confidence
		logger.Infof("Language detected engine=%s language=%s confidence=%.2f", s.engine.Name(), language, confidence)
	}
	if language == "" {
		language = vo.UnknownLanguage
	}

	segments := make([]vo.TranscriptSegment, 0)
	speech := false
	for _, chunk := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := s.engine.Transcribe(ctx, chunk, language, profile)
		if err != nil {
			return nil, s.engineError(ctx, "chunk "+strconv.Itoa(chunk.SequenceIndex), err)
		}
		if part == nil || part.NoSpeech {
			continue
		}
		shifted := shiftSegments(part.Segments, chunk)
		if len(shifted) > 0 {
			speech = true
		}
		segments = append(segments, shifted...)
	}

	if !speech {
		return vo.NoSpeechTranscript(), nil
	}

	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		texts = append(texts, seg.Text)
	}
	return &vo.Transcript{
		FullText:              strings.Join(texts, " "),
		Segments:              segments,
		DetectedLanguage:      language,
		LanguageConfidence:    confidence,
		LowConfidenceLanguage: confidence < s.cfg.LanguageConfidenceThreshold,
	}, nil
}

func (s *TranscriptionService) engineError(ctx context.Context, msg string, err error) error {
	// 任务被取消或超时时直接返回上下文错误
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var te *fault.TranscriptionError
	if errors.As(err, &te) {
		return err
	}
	return &fault.TranscriptionError{Kind: fault.KindEngineUnavailable, Message: msg, Err: err}
}

// minSegmentSpan 零长或倒序片段的最小时长（秒）
const minSegmentSpan = 0.01

// shiftSegments moves chunk-relative timestamps onto the source timeline, keeping
// each segment inside its chunk and ordered by start time.
func shiftSegments(in []vo.TranscriptSegment, chunk entity.MediaChunk) []vo.TranscriptSegment {
	offset := chunk.StartOffset.Seconds()
	limit := chunk.Duration.Seconds()
	out := make([]vo.TranscriptSegment, 0, len(in))
	for _, seg := range in {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := clamp(seg.Start, 0, limit)
		end := clamp(seg.End, 0, limit)
		if end <= start {
			if start >= limit {
				continue
			}
			end = min(start+minSegmentSpan, limit)
		}
		out = append(out, vo.TranscriptSegment{
			Start:      offset + start,
			End:        offset + end,
			Text:       text,
			Confidence: clamp(seg.Confidence, 0, 1),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}
