package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lingo-service/ddd/domain/fault"
	"lingo-service/ddd/domain/port"
	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
)

// FFmpegExtractor implements port.AudioExtractor with ffprobe and ffmpeg. Every
// extraction works inside its own temp dir which ExtractedAudio.Release removes.
type FFmpegExtractor struct {
	cfg      config.ExtractionConfig
	runner   CommandRunner
	resolver port.MediaResolver
}

func NewFFmpegExtractor(cfg config.ExtractionConfig, runner CommandRunner, resolver port.MediaResolver) *FFmpegExtractor {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &FFmpegExtractor{cfg: cfg, runner: runner, resolver: resolver}
}

type probeResult struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

func (p probeResult) hasAudio() bool {
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

func (p probeResult) duration() time.Duration {
	sec, err := strconv.ParseFloat(strings.TrimSpace(p.Format.Duration), 64)
	if err != nil || sec <= 0 {
		return 0
	}
	return time.Duration(sec * float64(time.Second))
}

// Extract resolves mediaRef, probes it, decodes the first audio track into mono PCM
// WAV at the requested rate and splits it into chunks.
func (e *FFmpegExtractor) Extract(ctx context.Context, mediaRef string, opts port.ExtractOptions) (*port.ExtractedAudio, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = e.cfg.SampleRate
	}
	if opts.MaxChunkDuration <= 0 {
		opts.MaxChunkDuration = e.cfg.MaxChunkDuration
	}

	if err := os.MkdirAll(e.cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(e.cfg.TempDir, "lingo-audio-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	release := func() error { return os.RemoveAll(dir) }
	keep := false
	defer func() {
		if !keep {
			_ = release()
		}
	}()

	input, err := e.resolver.Fetch(ctx, mediaRef, dir)
	if err != nil {
		return nil, asExtractionError(ctx, fault.KindUnsupportedFormat, "cannot read media", err)
	}

	probe, err := e.probe(ctx, input)
	if err != nil {
		return nil, asExtractionError(ctx, fault.KindUnsupportedFormat, "unrecognized media container", err)
	}
	if !probe.hasAudio() {
		return nil, &fault.ExtractionError{Kind: fault.KindNoAudioTrack, Message: "media has no audio stream"}
	}

	normalized := filepath.Join(dir, "audio.wav")
	if err := e.decode(ctx, input, normalized, opts); err != nil {
		return nil, asExtractionError(ctx, fault.KindDecodeFailure, "ffmpeg decode failed", err)
	}
	if input != mediaRef {
		// 下载到临时目录的源文件在解码后即可删除
		_ = os.Remove(input)
	}

	chunks, total, err := SplitWAV(normalized, dir, opts.MaxChunkDuration)
	if err != nil {
		return nil, asExtractionError(ctx, fault.KindDecodeFailure, "invalid decoded audio", err)
	}
	if len(chunks) > 1 {
		_ = os.Remove(normalized)
	}

	logger.Infof("Audio extracted ref=%s source_duration=%s decoded=%s chunks=%d",
		mediaRef, probe.duration(), total, len(chunks))
	keep = true
	return port.NewExtractedAudio(chunks, opts.SampleRate, total, release), nil
}

func (e *FFmpegExtractor) probe(ctx context.Context, input string) (*probeResult, error) {
	out, err := e.runner.Run(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		input,
	)
	if err != nil {
		return nil, err
	}
	var res probeResult
	if err := json.Unmarshal(out.Stdout, &res); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(res.Streams) == 0 && res.Format.FormatName == "" {
		return nil, errors.New("ffprobe found no streams")
	}
	return &res, nil
}

func (e *FFmpegExtractor) decode(ctx context.Context, input, output string, opts port.ExtractOptions) error {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-y",
		"-i", input,
		"-map", "0:a:0",
		"-vn",
	}
	if opts.Mono {
		args = append(args, "-ac", "1")
	}
	args = append(args,
		"-ar", strconv.Itoa(opts.SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		output,
	)
	_, err := e.runner.Run(ctx, e.cfg.FFmpegPath, args...)
	return err
}

func asExtractionError(ctx context.Context, kind fault.Kind, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ee *fault.ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	var ce *CommandError
	if errors.As(err, &ce) && len(ce.Stderr) > 0 {
		logger.Warnf("%s stderr_tail=%s", ce.Name, ce.Tail())
	}
	return &fault.ExtractionError{Kind: kind, Message: msg, Err: err}
}
