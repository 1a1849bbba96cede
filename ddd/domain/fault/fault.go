// Package fault defines the error taxonomy shared by the pipeline stages and the scheduler.
package fault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"lingo-service/ddd/domain/vo"
)

// Kind 错误类型
type Kind string

const (
	KindUnsupportedFormat     Kind = "UnsupportedFormat"
	KindNoAudioTrack          Kind = "NoAudioTrack"
	KindDecodeFailure         Kind = "DecodeFailure"
	KindEngineUnavailable     Kind = "EngineUnavailable"
	KindProviderFailure       Kind = "ProviderFailure"
	KindRateLimited           Kind = "RateLimited"
	KindAllProvidersExhausted Kind = "AllProvidersExhausted"
	KindInvalidInput          Kind = "InvalidInput"
	KindTimeout               Kind = "Timeout"
	KindWorkerFault           Kind = "WorkerFault"
	KindNotFound              Kind = "NotFound"
	KindNotReady              Kind = "NotReady"
	KindCancelled             Kind = "Cancelled"
	KindInternal              Kind = "Internal"
)

func (k Kind) String() string { return string(k) }

// ErrCancelled is returned by a stage gate when cancellation was requested.
var ErrCancelled = errors.New("task cancelled")

// ExtractionError 音频抽取失败
type ExtractionError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string { return describe("extraction", e.Kind, e.Message, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// TranscriptionError 语音识别失败。无语音不是错误，不会出现在这里。
type TranscriptionError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return describe("transcription", e.Kind, e.Message, e.Err)
}
func (e *TranscriptionError) Unwrap() error { return e.Err }

// ProviderAttempt records why a single provider did not produce a translation.
type ProviderAttempt struct {
	Provider string `json:"provider"`
	Kind     Kind   `json:"kind"`
	Reason   string `json:"reason"`
}

// TranslationError 翻译失败；AllProvidersExhausted 时 Attempts 记录每个 provider 的原因
type TranslationError struct {
	Kind     Kind
	Message  string
	Attempts []ProviderAttempt
	Err      error
}

func (e *TranslationError) Error() string {
	if len(e.Attempts) == 0 {
		return describe("translation", e.Kind, e.Message, e.Err)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.Provider, a.Kind, a.Reason))
	}
	msg := e.Message
	if msg == "" {
		msg = "all providers exhausted"
	}
	return fmt.Sprintf("translation %s: %s [%s]", e.Kind, msg, strings.Join(parts, "; "))
}
func (e *TranslationError) Unwrap() error { return e.Err }

// SchedulerError 调度层错误
type SchedulerError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *SchedulerError) Error() string { return describe("scheduler", e.Kind, e.Message, e.Err) }
func (e *SchedulerError) Unwrap() error { return e.Err }

// StageError tags a failure with the pipeline stage that produced it.
type StageError struct {
	Stage vo.Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// AtStage wraps err with stage unless it already carries one.
func AtStage(stage vo.Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	var te *TranscriptionError
	if errors.As(err, &te) {
		return te.Kind
	}
	var tr *TranslationError
	if errors.As(err, &tr) {
		return tr.Kind
	}
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// StageOf returns the stage recorded on err, if any.
func StageOf(err error) vo.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ToTaskError converts err into the form exposed through status polling.
func ToTaskError(err error) *vo.TaskError {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	return &vo.TaskError{
		Kind:    kind.String(),
		Stage:   StageOf(err),
		Message: publicMessage(kind, err),
	}
}

const maxPublicMessage = 300

func publicMessage(kind Kind, err error) string {
	switch kind {
	case KindInternal:
		return "internal error while processing the task"
	case KindTimeout:
		return "task exceeded its time limit"
	case KindWorkerFault:
		return "worker failed while processing the task"
	case KindCancelled:
		return "task was cancelled"
	}
	msg := err.Error()
	var se *StageError
	if errors.As(err, &se) {
		msg = se.Err.Error()
	}
	// 只保留首行，避免把底层命令输出带给调用方
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.ToValidUTF8(msg, "")
	if utf8.RuneCountInString(msg) > maxPublicMessage {
		msg = string([]rune(msg)[:maxPublicMessage])
	}
	return msg
}

func describe(scope string, kind Kind, message string, err error) string {
	switch {
	case message != "" && err != nil:
		return fmt.Sprintf("%s %s: %s: %v", scope, kind, message, err)
	case message != "":
		return fmt.Sprintf("%s %s: %s", scope, kind, message)
	case err != nil:
		return fmt.Sprintf("%s %s: %v", scope, kind, err)
	default:
		return fmt.Sprintf("%s %s", scope, kind)
	}
}
