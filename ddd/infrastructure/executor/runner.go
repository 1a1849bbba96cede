package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"lingo-service/pkg/logger"
)

const stderrTailLines = 50

// Output 命令输出，Stderr 只保留末尾若干行
type Output struct {
	Stdout []byte
	Stderr []string
}

// CommandRunner runs an external binary. On failure the error carries the tail of stderr.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// CommandError 外部命令执行失败
type CommandError struct {
	Name   string
	Err    error
	Stderr []string
}

func (e *CommandError) Error() string {
	if len(e.Stderr) == 0 {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, e.Stderr[len(e.Stderr)-1])
}

func (e *CommandError) Unwrap() error { return e.Err }

// Tail returns the captured stderr lines joined by newlines.
func (e *CommandError) Tail() string { return strings.Join(e.Stderr, "\n") }

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Output{}, fmt.Errorf("create stderr pipe for %s: %w", name, err)
	}

	logger.Debugf("exec command=%s %s", name, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return Output{}, &CommandError{Name: name, Err: err}
	}

	tail := make(chan []string, 1)
	go func() { tail <- captureTail(stderr, stderrTailLines) }()

	lines := <-tail
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		return Output{}, &CommandError{Name: name, Err: err, Stderr: lines}
	}
	return Output{Stdout: stdout.Bytes(), Stderr: lines}, nil
}

// captureTail keeps the last n lines of r.
func captureTail(r io.Reader, n int) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	buf := make([]string, 0, n)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(buf) >= n {
			buf = buf[1:]
		}
		buf = append(buf, line)
	}
	return buf
}
