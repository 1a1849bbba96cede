package port

import (
	"context"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/vo"
)

// LanguageGuess 语种识别结果
type LanguageGuess struct {
	Language   string
	Confidence float64
}

// ChunkTranscript holds segments timed relative to the chunk start.
type ChunkTranscript struct {
	Segments []vo.TranscriptSegment
	Language string
	NoSpeech bool
}

// SpeechEngine is the opaque speech-to-text capability. Errors mean the engine
// could not run; silence is reported through ChunkTranscript.NoSpeech.
type SpeechEngine interface {
	Name() string
	DetectLanguage(ctx context.Context, chunk entity.MediaChunk, profile string) (LanguageGuess, error)
	Transcribe(ctx context.Context, chunk entity.MediaChunk, language, profile string) (*ChunkTranscript, error)
}
