package service

import (
	"math"
	"strings"
	"time"
)

// 各模型档位相对实时的识别速度倍数
var profileSpeed = map[string]float64{
	"tiny":   10,
	"base":   8,
	"small":  4,
	"medium": 2,
	"large":  1,
}

// ProcessingEstimate 处理耗时估算，单位秒
type ProcessingEstimate struct {
	MediaDurationSeconds float64 `json:"media_duration_seconds"`
	ExtractionSeconds    float64 `json:"extraction_seconds"`
	TranscriptionSeconds float64 `json:"transcription_seconds"`
	TotalSeconds         float64 `json:"total_seconds"`
	SpeedRatio           float64 `json:"speed_ratio"`
	ModelProfile         string  `json:"model_profile"`
}

// EstimateProcessing gives a rough wall-clock estimate for media of the given length.
// Extraction costs a tenth of the duration with a 5s floor; transcription divides the
// duration by the profile speed. Unknown profiles (and large-v3 style names) fall back
// to their prefix, then to real time.
func EstimateProcessing(duration time.Duration, profile string) ProcessingEstimate {
	sec := duration.Seconds()
	profile = strings.ToLower(strings.TrimSpace(profile))
	speed := speedOf(profile)

	extraction := math.Max(5, sec*0.1)
	transcription := sec / speed
	total := extraction + transcription
	est := ProcessingEstimate{
		MediaDurationSeconds: round2(sec),
		ExtractionSeconds:    round2(extraction),
		TranscriptionSeconds: round2(transcription),
		TotalSeconds:         round2(total),
		ModelProfile:         profile,
	}
	if total > 0 {
		est.SpeedRatio = round2(sec / total)
	}
	return est
}

func speedOf(profile string) float64 {
	if s, ok := profileSpeed[profile]; ok {
		return s
	}
	for name, s := range profileSpeed {
		if strings.HasPrefix(profile, name) {
			return s
		}
	}
	return 1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
