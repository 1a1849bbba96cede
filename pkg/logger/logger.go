package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lingo-service/pkg/config"

	"github.com/sirupsen/logrus"
)

// Logger 日志服务，封装 logrus 实例及其输出文件
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = &Logger{entry: newDefaultLogrus()}
)

func newDefaultLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// NewLogger 根据配置创建日志器
func NewLogger(cfg *config.Config) *Logger {
	l := newDefaultLogrus()
	if cfg == nil {
		return &Logger{entry: l}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Log.Level))); err == nil {
		l.SetLevel(level)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	out := &Logger{entry: l}
	switch strings.ToLower(cfg.Log.Output) {
	case "file", "both":
		filename := cfg.Log.Filename
		if filename == "" {
			filename = "logs/lingo-service.log"
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create log dir failed: %v\n", err)
			return out
		}
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file failed: %v\n", err)
			return out
		}
		out.file = f
		if strings.EqualFold(cfg.Log.Output, "both") {
			l.SetOutput(io.MultiWriter(os.Stdout, f))
		} else {
			l.SetOutput(f)
		}
	}
	return out
}

// SetGlobalLogger 替换全局日志器
func SetGlobalLogger(l *Logger) {
	if l == nil || l.entry == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func current() *logrus.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger.entry
}

// Raw exposes the underlying logrus logger, e.g. for gin or pyroscope adapters.
func Raw() *logrus.Logger {
	return current()
}

// Close 关闭日志文件
func (l *Logger) Close() {
	if l == nil || l.file == nil {
		return
	}
	_ = l.file.Sync()
	_ = l.file.Close()
	l.file = nil
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

func Debug(msg string, fields map[string]interface{}) {
	current().WithFields(logrus.Fields(fields)).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	current().WithFields(logrus.Fields(fields)).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	current().WithFields(logrus.Fields(fields)).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	current().WithFields(logrus.Fields(fields)).Error(msg)
}

// Fatal 记录日志后退出进程
func Fatal(msg string) {
	current().Fatal(msg)
}
