// Package shellbridge owns the single interactive shell process inside a
// session's container: it frames commands with an exit-code sentinel,
// enforces per-call timeouts, and recovers from stuck children without
// killing the shell itself.
package shellbridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/health"
	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/types"
)

// DefaultTimeout and LongTimeout are the two timeout tiers named in §5 of
// the spec this package implements: ordinary commands vs. installs/clones.
const (
	DefaultTimeout = 25 * time.Second
	LongTimeout    = 500 * time.Second

	drainWindow = time.Second
)

const killSignal = syscall.SIGKILL

// Bridge drives one interactive shell process. Communicate is the only
// synchronous primitive; callers must serialize their own calls to it.
type Bridge struct {
	rt     containerrt.Runtime
	handle types.ContainerHandle

	stdin     io.Writer
	lines     <-chan string
	readerErr <-chan error

	parentPIDs map[int]bool

	mu sync.Mutex
}

// New constructs a Bridge over an already-started container. stdout is the
// read end of the container's stdout pipe; the bridge owns reading from it
// for its lifetime. parentPIDs is the snapshot of PIDs alive inside the
// container immediately after shell init.
func New(rt containerrt.Runtime, handle types.ContainerHandle, stdin io.Writer, stdout io.Reader, parentPIDs []int) *Bridge {
	lines := make(chan string, 256)
	readErrCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErrCh <- scanner.Err()
		close(lines)
	}()

	parents := make(map[int]bool, len(parentPIDs))
	for _, p := range parentPIDs {
		parents[p] = true
	}

	return &Bridge{
		rt:         rt,
		handle:     handle,
		stdin:      stdin,
		lines:      lines,
		readerErr:  readErrCh,
		parentPIDs: parents,
	}
}

const exitSentinelCmd = "echo $?"

// Communicate writes input to the shell, waits for it to finish (signaled
// by the echoed exit code), and returns its output and return code.
func (b *Bridge) Communicate(ctx context.Context, input string, timeout time.Duration) (string, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger := log.WithComponent("shellbridge")
	timer := metrics.NewTimer()
	defer func() { timer.ObserveDuration(metrics.ShellCommandDuration) }()

	if out, code, ok := b.precheck(ctx, input); !ok {
		metrics.ShellCommandsTotal.WithLabelValues("syntax_error").Inc()
		return out, code, nil
	}

	if _, err := io.WriteString(b.stdin, input+"\n"); err != nil {
		logger.Error().Err(err).Msg("write to shell failed")
		metrics.ShellCommandsTotal.WithLabelValues("fatal").Inc()
		return "", -1, fmt.Errorf("%w: write command: %v", ErrShellFatal, err)
	}
	if _, err := io.WriteString(b.stdin, exitSentinelCmd+"\n"); err != nil {
		logger.Error().Err(err).Msg("write exit sentinel failed")
		metrics.ShellCommandsTotal.WithLabelValues("fatal").Inc()
		return "", -1, fmt.Errorf("%w: write exit sentinel: %v", ErrShellFatal, err)
	}

	var out strings.Builder
	deadline := time.After(timeout)

	for {
		select {
		case line, ok := <-b.lines:
			if !ok {
				err := <-b.readerErr
				metrics.ShellCommandsTotal.WithLabelValues("fatal").Inc()
				return out.String(), -1, fmt.Errorf("%w: shell stdout closed: %v", ErrShellFatal, err)
			}
			if code, isSentinel := parseExitLine(line); isSentinel {
				metrics.ShellCommandsTotal.WithLabelValues("ok").Inc()
				logger.Debug().Int("returncode", code).Dur("duration", timer.Duration()).Msg("communicate complete")
				return out.String(), code, nil
			}
			out.WriteString(line)
			out.WriteString("\n")

		case <-deadline:
			metrics.ShellTimeoutsTotal.Inc()
			metrics.ShellCommandsTotal.WithLabelValues("timeout").Inc()
			b.killChildren(ctx)
			out.WriteString(b.drain())
			return out.String(), -1, fmt.Errorf("%w: EXECUTION TIMED OUT", ErrShellTimeout)

		case <-ctx.Done():
			metrics.ShellCommandsTotal.WithLabelValues("canceled").Inc()
			return out.String(), -1, ctx.Err()
		}
	}
}

// parseExitLine reports whether line is a bare non-negative integer, i.e.
// the echoed exit code rather than command output.
func parseExitLine(line string) (int, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return 0, false
	}
	code, err := strconv.Atoi(trimmed)
	if err != nil || code < 0 {
		return 0, false
	}
	return code, true
}

// precheck runs input under bash -n out-of-band to catch malformed
// commands before they can leave the interactive shell in a half-parsed
// continuation state.
func (b *Bridge) precheck(ctx context.Context, input string) (output string, code int, ok bool) {
	out, exitCode, err := b.rt.Exec(ctx, b.handle, []string{"bash", "-n", "-c", input})
	if err != nil {
		// Precheck itself failing (exec plumbing broken) is not a syntax
		// rejection; let the real command run and surface any error there.
		return "", 0, true
	}
	if exitCode != 0 {
		return out, exitCode, false
	}
	return "", 0, true
}

// killChildren SIGKILLs every PID inside the container not present in
// parentPIDs, via the runtime's out-of-band exec/PID channel rather than
// the bridge's own stdio.
func (b *Bridge) killChildren(ctx context.Context) {
	pids, err := b.rt.ChildPIDs(ctx, b.handle)
	if err != nil {
		log.WithComponent("shellbridge").Warn().Err(err).Msg("list child pids failed during timeout recovery")
		return
	}
	for _, pid := range pids {
		if b.parentPIDs[pid] {
			continue
		}
		if err := b.rt.Kill(ctx, b.handle, pid, killSignal); err != nil {
			log.WithComponent("shellbridge").Warn().Err(err).Int("pid", pid).Msg("kill child failed")
		}
	}
}

// drain collects whatever output arrives within a short bounded window
// after a timeout or interrupt, without blocking indefinitely.
func (b *Bridge) drain() string {
	var out strings.Builder
	deadline := time.After(drainWindow)
	for {
		select {
		case line, ok := <-b.lines:
			if !ok {
				return out.String()
			}
			if _, isSentinel := parseExitLine(line); isSentinel {
				return out.String()
			}
			out.WriteString(line)
			out.WriteString("\n")
		case <-deadline:
			return out.String()
		}
	}
}

// Interrupt kills runaway children and performs a health-check round trip.
// A failed round trip means the session is corrupt and must be reset.
func (b *Bridge) Interrupt(ctx context.Context) error {
	b.killChildren(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := io.WriteString(b.stdin, "echo 'interrupted'\n"); err != nil {
		return b.execHealthFallback(ctx, fmt.Errorf("%w: %v", ErrInterruptFailed, err))
	}
	if _, err := io.WriteString(b.stdin, exitSentinelCmd+"\n"); err != nil {
		return b.execHealthFallback(ctx, fmt.Errorf("%w: %v", ErrInterruptFailed, err))
	}

	deadline := time.After(drainWindow * 5)
	sawInterrupted := false
	for {
		select {
		case line, ok := <-b.lines:
			if !ok {
				return b.execHealthFallback(ctx, ErrInterruptFailed)
			}
			if strings.TrimSpace(line) == "interrupted" {
				sawInterrupted = true
			}
			if _, isSentinel := parseExitLine(line); isSentinel {
				if !sawInterrupted {
					return b.execHealthFallback(ctx, ErrInterruptFailed)
				}
				return nil
			}
		case <-deadline:
			return b.execHealthFallback(ctx, ErrInterruptFailed)
		}
	}
}

// execHealthFallback is consulted only once the shell's own echo-based
// round trip has already failed. It asks the runtime directly, out of
// band and bypassing the shell's own stdin entirely, whether the
// container is still reachable at all, so the caller can distinguish a
// dead container from a shell that is merely stuck.
func (b *Bridge) execHealthFallback(ctx context.Context, primaryErr error) error {
	result := health.NewExecChecker(b.rt, b.handle, []string{"true"}).Check(ctx)
	if !result.Healthy {
		return fmt.Errorf("%w: container unreachable: %s", primaryErr, result.Message)
	}
	return primaryErr
}
