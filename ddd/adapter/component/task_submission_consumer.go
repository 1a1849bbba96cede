package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	appsvc "lingo-service/ddd/application/app"
	"lingo-service/ddd/application/cqe"
	"lingo-service/pkg/errno"
	"lingo-service/pkg/logger"
	"lingo-service/pkg/manager"
)

func init() {
	manager.RegisterComponentPlugin(&TaskSubmissionConsumerPlugin{})
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SubmissionMessage Kafka 提交消息体
type SubmissionMessage struct {
	MediaRef       string `json:"media_ref"`
	TargetLanguage string `json:"target_language,omitempty"`
	ModelProfile   string `json:"model_profile,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

type TaskSubmissionConsumerPlugin struct{}

func (p *TaskSubmissionConsumerPlugin) Name() string { return "taskSubmissionConsumer" }

// MustCreateComponent Kafka 未启用或未配置提交主题时跳过
func (p *TaskSubmissionConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	if deps == nil || deps.Config == nil || deps.Kafka == nil {
		return nil
	}
	cfg := deps.Config.Kafka
	if !cfg.Enabled || cfg.Topics.TaskSubmissions == "" {
		return nil
	}
	if deps.TaskApp == nil {
		panic("task submission consumer requires TaskApp")
	}
	return &taskSubmissionConsumer{
		app:                  deps.TaskApp,
		topic:                cfg.Topics.TaskSubmissions,
		group:                cfg.GroupID,
		commitOnDecodeError:  cfg.CommitOnDecodeError,
		commitOnProcessError: cfg.CommitOnProcessError,
		newReader: func() messageReader {
			return deps.Kafka.Reader(cfg.Topics.TaskSubmissions, cfg.GroupID)
		},
		retryDelay: time.Second,
		maxRetries: 3,
	}
}

type taskSubmissionConsumer struct {
	app                  appsvc.TaskApp
	topic                string
	group                string
	commitOnDecodeError  bool
	commitOnProcessError bool
	newReader            func() messageReader
	retryDelay           time.Duration
	maxRetries           int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *taskSubmissionConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	reader := c.newReader()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer reader.Close()
		logger.Infof("Kafka consumer started topic=%s group=%s", c.topic, c.group)
		c.run(ctx, reader)
	}()
	return nil
}

func (c *taskSubmissionConsumer) run(ctx context.Context, reader messageReader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debugf("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			if !sleepCtx(ctx, c.retryDelay) {
				return
			}
			continue
		}
		if c.handle(ctx, msg) {
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Warnf("Kafka commit failed offset=%d error=%v", msg.Offset, err)
			}
		}
	}
}

// handle 返回是否提交 offset。校验类错误重放也不会成功，直接提交；
// 队列或数据库不可用时按退避重试，仍失败则由 commit_on_process_error 决定。
func (c *taskSubmissionConsumer) handle(ctx context.Context, msg kafkago.Message) bool {
	var m SubmissionMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		logger.Warnf("Kafka message unmarshal error offset=%d error=%s", msg.Offset, err.Error())
		return c.commitOnDecodeError
	}

	req := &cqe.SubmitTaskCqe{MediaRef: m.MediaRef, TargetLanguage: m.TargetLanguage, ModelProfile: m.ModelProfile}
	for attempt := 0; ; attempt++ {
		out, err := c.app.SubmitTask(ctx, req)
		if err == nil {
			logger.Infof("Kafka submission accepted task_id=%s request_id=%s", out.TaskID, m.RequestID)
			return true
		}
		if !retryable(err) {
			logger.Warnf("Kafka submission rejected request_id=%s media_ref=%s error=%v", m.RequestID, m.MediaRef, err)
			return true
		}
		if attempt >= c.maxRetries || !sleepCtx(ctx, c.retryDelay) {
			logger.Errorf("Kafka submission failed request_id=%s error=%v", m.RequestID, err)
			return c.commitOnProcessError
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, errno.ErrQueueUnavailable) || errors.Is(err, errno.ErrDatabase)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *taskSubmissionConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *taskSubmissionConsumer) GetName() string { return "taskSubmissionConsumer" }
