package linkcheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ErrLaunch marks a checker that could not be started at all, as opposed to
// one that ran and exited non-zero.
var ErrLaunch = errors.New("checker launch failed")

// ProcessRunner runs one external process to completion. A non-zero exit is
// reported through exitCode with a nil error; err is only for launch failures.
type ProcessRunner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (exitCode int, err error)
}

type ExecRunner struct {
	workDir string

	execCommandContext func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewExecRunner(workDir string) *ExecRunner {
	return &ExecRunner{
		workDir:            workDir,
		execCommandContext: exec.CommandContext,
	}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := r.execCommandContext(ctx, name, args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				// Killed by a signal.
				code = 1
			}
			return code, nil
		}
		return 1, fmt.Errorf("%w: %s", ErrLaunch, err.Error())
	}
	return 0, nil
}

var _ ProcessRunner = (*ExecRunner)(nil)

// combinedBuffer collects stdout and stderr in arrival order. exec copies the
// two streams from separate goroutines.
type combinedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *combinedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *combinedBuffer) appendText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(s)
}

func (b *combinedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// passThrough mirrors checker output to the console. Its write errors are
// dropped so a closed console never truncates the captured output.
type passThrough struct {
	w io.Writer
}

func (p passThrough) Write(b []byte) (int, error) {
	_, _ = p.w.Write(b)
	return len(b), nil
}
