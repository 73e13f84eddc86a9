package preparer

import (
	"bytes"
	"context"
	"os/exec"
)

// CommandResult 捕获一次子进程执行的输出
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner 抽象子进程执行，方便测试时注入假实现，不用真的调用 ffmpeg/ffprobe
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
	LookPath(name string) error
}

// execRunner 生产环境下真正调用 os/exec 的实现
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	return res, err
}

func (execRunner) LookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}
