package health

import (
	"context"
	"fmt"
	"time"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/types"
)

// ExecChecker runs a command inside the session's container via a
// containerrt.Runtime and reports whether it exited zero. The shell
// bridge's interrupt round trip falls back to this checker, out of band
// via the runtime rather than the shell's own stdin, once its own
// echo-based round trip has already failed, so a caller can tell a truly
// dead container from a shell that is merely stuck.
type ExecChecker struct {
	Runtime containerrt.Runtime
	Handle  types.ContainerHandle
	Command []string
	Timeout time.Duration
}

// NewExecChecker creates an exec health checker against handle using rt.
func NewExecChecker(rt containerrt.Runtime, handle types.ContainerHandle, command []string) *ExecChecker {
	return &ExecChecker{
		Runtime: rt,
		Handle:  handle,
		Command: command,
		Timeout: 10 * time.Second,
	}
}

func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return Result{Healthy: false, Message: "no command specified", CheckedAt: start, Duration: time.Since(start)}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	out, exitCode, err := e.Runtime.Exec(execCtx, e.Handle, e.Command)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("command %v: %v", e.Command, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	healthy := exitCode == 0
	message := fmt.Sprintf("command %v exited %d", e.Command, exitCode)
	if len(out) > 0 {
		if len(out) > 100 {
			out = out[:100] + "..."
		}
		message = fmt.Sprintf("%s, output: %s", message, out)
	}

	return Result{Healthy: healthy, Message: message, CheckedAt: start, Duration: time.Since(start)}
}

func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}
