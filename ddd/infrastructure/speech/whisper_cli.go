package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/vo"
	"lingo-service/ddd/infrastructure/executor"
	"lingo-service/pkg/config"
)

var detectedRe = regexp.MustCompile(`auto-detected language:\s*([a-zA-Z-]+)\s*\(p\s*=\s*([0-9.]+)\)`)

// WhisperCLIEngine runs a whisper.cpp compatible binary per chunk.
type WhisperCLIEngine struct {
	binary   string
	threads  int
	profiles Profiles
	runner   executor.CommandRunner
}

func NewWhisperCLIEngine(cfg config.TranscriptionConfig, runner executor.CommandRunner) *WhisperCLIEngine {
	if runner == nil {
		runner = executor.NewExecRunner()
	}
	return &WhisperCLIEngine{
		binary:   cfg.BinaryPath,
		threads:  cfg.Threads,
		profiles: NewProfiles(cfg.Models, cfg.DefaultProfile),
		runner:   runner,
	}
}

func (e *WhisperCLIEngine) Name() string { return "whisper_cli" }

// Profiles exposes the configured model profiles.
func (e *WhisperCLIEngine) Profiles() Profiles { return e.profiles }

func (e *WhisperCLIEngine) baseArgs(model, file string) []string {
	args := []string{"-m", model, "-f", file, "-np"}
	if e.threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.threads))
	}
	return args
}

// DetectLanguage uses whisper's own language identification on the chunk.
func (e *WhisperCLIEngine) DetectLanguage(ctx context.Context, chunk entity.MediaChunk, profile string) (port.LanguageGuess, error) {
	model, err := e.profiles.Resolve(profile)
	if err != nil {
		return port.LanguageGuess{}, err
	}
	args := append(e.baseArgs(model, chunk.PayloadRef), "-l", "auto", "-dl")
	out, err := e.runner.Run(ctx, e.binary, args...)
	if err != nil {
		return port.LanguageGuess{}, err
	}
	lines := append(strings.Split(string(out.Stdout), "\n"), out.Stderr...)
	for _, line := range lines {
		if m := detectedRe.FindStringSubmatch(line); len(m) == 3 {
			p, _ := strconv.ParseFloat(m[2], 64)
			return port.LanguageGuess{Language: m[1], Confidence: p}, nil
		}
	}
	return port.LanguageGuess{Language: vo.UnknownLanguage}, nil
}

type whisperJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string `json:"text"`
		Tokens []struct {
			P float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

// Transcribe writes whisper's JSON output next to the chunk and parses it.
func (e *WhisperCLIEngine) Transcribe(ctx context.Context, chunk entity.MediaChunk, language, profile string) (*port.ChunkTranscript, error) {
	model, err := e.profiles.Resolve(profile)
	if err != nil {
		return nil, err
	}
	if language == "" || language == vo.UnknownLanguage {
		language = "auto"
	}
	prefix := strings.TrimSuffix(chunk.PayloadRef, ".wav") + ".whisper"
	args := append(e.baseArgs(model, chunk.PayloadRef), "-l", whisperLang(language), "-oj", "-of", prefix)
	if _, err := e.runner.Run(ctx, e.binary, args...); err != nil {
		return nil, err
	}
	defer os.Remove(prefix + ".json")

	raw, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperJSON(raw, language)
}

func parseWhisperJSON(raw []byte, language string) (*port.ChunkTranscript, error) {
	var doc whisperJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	if doc.Transcription == nil {
		return nil, errors.New("whisper output has no transcription")
	}
	out := &port.ChunkTranscript{Language: language}
	if doc.Result.Language != "" {
		out.Language = doc.Result.Language
	}
	for _, seg := range doc.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" || isMarker(text) {
			continue
		}
		out.Segments = append(out.Segments, vo.TranscriptSegment{
			Start:      float64(seg.Offsets.From) / 1000,
			End:        float64(seg.Offsets.To) / 1000,
			Text:       text,
			Confidence: tokenConfidence(seg.Tokens),
		})
	}
	out.NoSpeech = len(out.Segments) == 0
	return out, nil
}

func tokenConfidence(tokens []struct {
	P float64 `json:"p"`
}) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.P
	}
	return sum / float64(len(tokens))
}

// whisperLang whisper 只接受不带地区后缀的代码
func whisperLang(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}
