package vo

import "time"

// UnknownLanguage 无法识别语种时使用
const UnknownLanguage = "unknown"

// TranscriptSegment 带时间戳的识别片段，时间单位为秒
type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcript 识别结果
type Transcript struct {
	FullText              string              `json:"full_text"`
	Segments              []TranscriptSegment `json:"segments"`
	DetectedLanguage      string              `json:"detected_language"`
	LanguageConfidence    float64             `json:"language_confidence"`
	LowConfidenceLanguage bool                `json:"low_confidence_language"`
	NoSpeech              bool                `json:"no_speech"`
}

// NoSpeechTranscript is the valid outcome for audio without detectable speech.
func NoSpeechTranscript() *Transcript {
	return &Transcript{
		FullText:         "",
		Segments:         []TranscriptSegment{},
		DetectedLanguage: UnknownLanguage,
		NoSpeech:         true,
	}
}

// TaskResult 任务最终结果，写入 ResultStore
type TaskResult struct {
	TaskID                string              `json:"task_id"`
	FullText              string              `json:"full_text"`
	Segments              []TranscriptSegment `json:"segments"`
	DetectedLanguage      string              `json:"detected_language"`
	LanguageConfidence    float64             `json:"language_confidence"`
	LowConfidenceLanguage bool                `json:"low_confidence_language"`
	NoSpeech              bool                `json:"no_speech"`
	TranslatedText        string              `json:"translated_text,omitempty"`
	TargetLanguage        string              `json:"target_language,omitempty"`
	ProviderUsed          string              `json:"provider_used,omitempty"`
	AudioDuration         float64             `json:"audio_duration"`
	CompletedAt           time.Time           `json:"completed_at"`
}
