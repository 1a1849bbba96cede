package service

import (
	"context"
	"fmt"
	"time"

	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/repo"
	"lingo-service/ddd/domain/vo"
	"lingo-service/pkg/logger"
)

// 各阶段完成后的进度
const (
	PercentExtracted   = 30
	PercentTranscribed = 75
	PercentTranslated  = 95
	PercentStored      = 100
)

// Translator is the slice of the translation chain the pipeline needs.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (*TranslationResult, error)
}

// PipelineConfig 流水线参数
type PipelineConfig struct {
	Extract port.ExtractOptions
}

// PipelineRequest describes one run.
type PipelineRequest struct {
	TaskID   string
	MediaRef string
	Options  vo.TaskOptions
}

// PipelineService runs extraction, transcription and translation for one task.
type PipelineService struct {
	extractor   port.AudioExtractor
	transcriber *TranscriptionService
	translator  Translator
	results     repo.ResultStore
	sink        port.ProgressSink
	gate        port.StageGate
	cfg         PipelineConfig
}

func NewPipelineService(
	extractor port.AudioExtractor,
	transcriber *TranscriptionService,
	translator Translator,
	results repo.ResultStore,
	sink port.ProgressSink,
	gate port.StageGate,
	cfg PipelineConfig,
) *PipelineService {
	return &PipelineService{
		extractor:   extractor,
		transcriber: transcriber,
		translator:  translator,
		results:     results,
		sink:        sink,
		gate:        gate,
		cfg:         cfg,
	}
}

// Run executes every stage in order. Any stage failure aborts the run with an error
// tagged by stage; no partial result is stored. Temporary audio is released on all paths.
func (p *PipelineService) Run(ctx context.Context, req PipelineRequest) (*vo.TaskResult, error) {
	if err := p.checkpoint(ctx, req.TaskID, vo.StageExtraction); err != nil {
		return nil, err
	}
	audio, err := p.extractor.Extract(ctx, req.MediaRef, p.cfg.Extract)
	if err != nil {
		return nil, fault.AtStage(vo.StageExtraction, err)
	}
	defer func() {
		if err := audio.Release(); err != nil {
			logger.Warnf("Release audio failed task_id=%s error=%v", req.TaskID, err)
		}
	}()
	p.report(ctx, req.TaskID, vo.StageExtraction, PercentExtracted,
		fmt.Sprintf("extracted %d chunk(s), %.1fs of audio", len(audio.Chunks), audio.SourceDuration.Seconds()))

	if err := p.checkpoint(ctx, req.TaskID, vo.StageTranscription); err != nil {
		return nil, err
	}
	transcript, err := p.transcriber.Transcribe(ctx, audio.Chunks, "", req.Options.ModelProfile)
	if err != nil {
		return nil, fault.AtStage(vo.StageTranscription, err)
	}
	// 识别完成后音频即可释放
	_ = audio.Release()
	p.report(ctx, req.TaskID, vo.StageTranscription, PercentTranscribed,
		fmt.Sprintf("transcribed %d segment(s), language %s", len(transcript.Segments), transcript.DetectedLanguage))

	result := &vo.TaskResult{
		TaskID:                req.TaskID,
		FullText:              transcript.FullText,
		Segments:              transcript.Segments,
		DetectedLanguage:      transcript.DetectedLanguage,
		LanguageConfidence:    transcript.LanguageConfidence,
		LowConfidenceLanguage: transcript.LowConfidenceLanguage,
		NoSpeech:              transcript.NoSpeech,
		AudioDuration:         audio.SourceDuration.Seconds(),
	}

	if p.shouldTranslate(req.Options, transcript) {
		if err := p.checkpoint(ctx, req.TaskID, vo.StageTranslation); err != nil {
			return nil, err
		}
		translated, err := p.translator.Translate(ctx, transcript.FullText, req.Options.TargetLanguage, transcript.DetectedLanguage)
		if err != nil {
			return nil, fault.AtStage(vo.StageTranslation, err)
		}
		result.TranslatedText = translated.Text
		result.TargetLanguage = vo.NormalizeLanguage(req.Options.TargetLanguage)
		result.ProviderUsed = translated.ProviderUsed
		p.report(ctx, req.TaskID, vo.StageTranslation, PercentTranslated, "translated by "+translated.ProviderUsed)
	} else {
		p.report(ctx, req.TaskID, vo.StageTranslation, PercentTranslated, "translation skipped")
	}

	if err := p.checkpoint(ctx, req.TaskID, vo.StageStoring); err != nil {
		return nil, err
	}
	result.CompletedAt = time.Now()
	ref, err := p.results.Put(ctx, result)
	if err != nil {
		return nil, fault.AtStage(vo.StageStoring, err)
	}
	if err := p.sink.SaveResultRef(ctx, req.TaskID, ref); err != nil {
		return nil, fault.AtStage(vo.StageStoring, err)
	}
	p.report(ctx, req.TaskID, vo.StageStoring, PercentStored, "result stored")
	return result, nil
}

func (p *PipelineService) shouldTranslate(opts vo.TaskOptions, t *vo.Transcript) bool {
	if !opts.WantsTranslation() || t.NoSpeech || t.FullText == "" {
		return false
	}
	return !vo.SameLanguage(opts.TargetLanguage, t.DetectedLanguage)
}

func (p *PipelineService) checkpoint(ctx context.Context, taskID string, next vo.Stage) error {
	if err := ctx.Err(); err != nil {
		return fault.AtStage(next, err)
	}
	if p.gate == nil {
		return nil
	}
	if err := p.gate.Checkpoint(ctx, taskID, next); err != nil {
		return fault.AtStage(next, err)
	}
	return nil
}

// report 进度写入失败只记录日志，不影响任务
func (p *PipelineService) report(ctx context.Context, taskID string, stage vo.Stage, percent int, msg string) {
	if p.sink == nil {
		return
	}
	if err := p.sink.SaveProgress(ctx, taskID, vo.NewProgress(stage, percent, msg)); err != nil {
		logger.Warnf("Save progress failed task_id=%s stage=%s error=%v", taskID, stage, err)
	}
}
