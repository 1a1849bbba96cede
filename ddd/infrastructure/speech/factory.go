package speech

import (
	"fmt"

	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/infrastructure/executor"
	"lingo-service/pkg/config"
)

// ProfileAware engines expose their model profiles for submit-time validation.
type ProfileAware interface {
	Profiles() Profiles
}

// NewEngine builds the configured engine.
func NewEngine(cfg config.TranscriptionConfig, runner executor.CommandRunner) (port.SpeechEngine, error) {
	switch cfg.Driver {
	case "whisper_cli", "":
		return NewWhisperCLIEngine(cfg, runner), nil
	case "openai":
		return NewOpenAIEngine(cfg), nil
	}
	return nil, fmt.Errorf("unknown transcription driver %q", cfg.Driver)
}
