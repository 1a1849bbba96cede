package service

import (
	"testing"
	"time"
)

func TestEstimateProcessing(t *testing.T) {
	tests := []struct {
		name          string
		duration      time.Duration
		profile       string
		extraction    float64
		transcription float64
	}{
		{"base ten minutes", 10 * time.Minute, "base", 60, 75},
		{"short clip uses extraction floor", 20 * time.Second, "tiny", 5, 2},
		{"versioned large", time.Minute, "Large-v3", 6, 60},
		{"unknown profile is real time", time.Minute, "custom", 6, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateProcessing(tt.duration, tt.profile)
			if got.ExtractionSeconds != tt.extraction || got.TranscriptionSeconds != tt.transcription {
				t.Fatalf("estimate = %+v", got)
			}
			if got.TotalSeconds != tt.extraction+tt.transcription {
				t.Fatalf("total = %v", got.TotalSeconds)
			}
			if got.SpeedRatio <= 0 {
				t.Fatalf("speed ratio = %v", got.SpeedRatio)
			}
		})
	}
}
