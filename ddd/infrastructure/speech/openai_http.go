package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"lingo-service/ddd/domain/entity"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/vo"
	"lingo-service/pkg/config"
)

// noSpeechProbability above which a segment is treated as silence.
const noSpeechProbability = 0.8

// OpenAIEngine calls an OpenAI compatible /audio/transcriptions endpoint.
type OpenAIEngine struct {
	endpoint string
	apiKey   string
	profiles Profiles
	client   *http.Client
}

func NewOpenAIEngine(cfg config.TranscriptionConfig) *OpenAIEngine {
	models := cfg.Models
	if len(models) == 0 {
		models = map[string]string{cfg.DefaultProfile: "whisper-1"}
	}
	return &OpenAIEngine{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		profiles: NewProfiles(models, cfg.DefaultProfile),
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

// Profiles exposes the configured model profiles.
func (e *OpenAIEngine) Profiles() Profiles { return e.profiles }

type verboseJSON struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// DetectLanguage transcribes the chunk without a hint and reads the reported language.
// The API exposes no probability, so a detected language has confidence 1.
func (e *OpenAIEngine) DetectLanguage(ctx context.Context, chunk entity.MediaChunk, profile string) (port.LanguageGuess, error) {
	resp, err := e.call(ctx, chunk, "", profile)
	if err != nil {
		return port.LanguageGuess{}, err
	}
	lang := vo.NormalizeLanguage(resp.Language)
	if lang == "" {
		return port.LanguageGuess{Language: vo.UnknownLanguage}, nil
	}
	return port.LanguageGuess{Language: lang, Confidence: 1}, nil
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, chunk entity.MediaChunk, language, profile string) (*port.ChunkTranscript, error) {
	if language == vo.UnknownLanguage || language == port.AutoLanguage {
		language = ""
	}
	resp, err := e.call(ctx, chunk, whisperLang(language), profile)
	if err != nil {
		return nil, err
	}
	out := &port.ChunkTranscript{Language: vo.NormalizeLanguage(resp.Language)}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || isMarker(text) || seg.NoSpeechProb > noSpeechProbability {
			continue
		}
		out.Segments = append(out.Segments, vo.TranscriptSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       text,
			Confidence: math.Exp(seg.AvgLogprob),
		})
	}
	out.NoSpeech = len(out.Segments) == 0
	return out, nil
}

func (e *OpenAIEngine) call(ctx context.Context, chunk entity.MediaChunk, language, profile string) (*verboseJSON, error) {
	model, err := e.profiles.Resolve(profile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(chunk.PayloadRef)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(chunk.PayloadRef))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"model":                     model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/audio/transcriptions", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out verboseJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}
	return &out, nil
}
