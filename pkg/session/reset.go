package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sweagent/sweenv/pkg/diffengine"
	"github.com/sweagent/sweenv/pkg/dispatcher"
	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/events"
	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/shellbridge"
	"github.com/sweagent/sweenv/pkg/symbolindex"
	"github.com/sweagent/sweenv/pkg/types"
)

// Reset sequences one task into a fresh or reused container: start (on
// first call) or reuse the container, clone or reuse the repo mirror,
// restore the working tree to base_commit, run the task's environment
// activation command if it has one (no other environment variables are
// reset), and rebuild the symbol index. Safe to call again with a new
// task to begin the next episode in the same container.
func (s *Session) Reset(ctx context.Context, task *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := metrics.NewTimer()
	logger := log.WithSessionID(s.id).With().Str("instance_id", task.InstanceID).Logger()

	s.task = task
	s.cwd = "/"

	if s.handle.ID == "" {
		if err := s.startContainer(ctx); err != nil {
			metrics.SessionResetsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("session: start container: %w", err)
		}
		metrics.SessionsActive.Inc()
	}

	if err := s.syncRepo(ctx, task); err != nil {
		metrics.SessionResetsTotal.WithLabelValues("error").Inc()
		timer.ObserveDuration(metrics.SessionResetDuration)
		return fmt.Errorf("session: sync repo: %w", err)
	}

	if task.EnvActivationCommand != "" {
		if _, _, err := s.bridge.Communicate(ctx, task.EnvActivationCommand, shellbridge.LongTimeout); err != nil {
			logger.Warn().Err(err).Msg("env activation command failed")
		}
	}

	if err := s.fs.LoadGitignore(ctx, s.cfg.RepoRoot); err != nil {
		logger.Warn().Err(err).Msg("load .gitignore failed")
	}

	s.idx.Reset()
	if _, err := s.idx.Ensure(ctx); err != nil {
		logger.Warn().Err(err).Msg("symbol index build failed during reset")
	}

	if s.cfg.Oracle && task.TestPatch != "" {
		if err := s.applyTestPatch(ctx, task.TestPatch); err != nil {
			logger.Warn().Err(err).Msg("oracle test patch apply failed")
		}
	}

	metrics.SessionResetsTotal.WithLabelValues("ok").Inc()
	timer.ObserveDuration(metrics.SessionResetDuration)
	s.publish(events.EventSessionReset, "session reset for "+task.InstanceID, map[string]string{"instance_id": task.InstanceID})
	return nil
}

// startContainer starts the container on a context detached from the
// caller's, since containerrt implementations tie the container process's
// lifetime to the context passed to Start. It must outlive this call, not
// just the reset that triggered it. StartTimeout bounds only the start call
// itself.
func (s *Session) startContainer(ctx context.Context) error {
	startCtx, cancelStart := context.WithTimeout(ctx, s.cfg.StartTimeout)
	defer cancelStart()

	timer := metrics.NewTimer()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	type startResult struct {
		handle types.ContainerHandle
		err    error
	}
	done := make(chan startResult, 1)
	go func() {
		handle, err := s.rt.Start(context.Background(), s.task, s.cfg.ImageRef, stdinR, stdoutW, os.Stderr)
		done <- startResult{handle, err}
	}()

	var res startResult
	select {
	case res = <-done:
	case <-startCtx.Done():
		return fmt.Errorf("start: %w", startCtx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("start: %w", res.err)
	}
	handle := res.handle
	timer.ObserveDuration(metrics.ContainerStartDuration)

	s.handle = handle
	s.stdinPipe = stdinW

	parentPIDs, err := s.rt.ChildPIDs(ctx, handle)
	if err != nil {
		parentPIDs = nil
	}
	s.parentPIDs = parentPIDs

	s.bridge = shellbridge.New(s.rt, handle, stdinW, stdoutR, parentPIDs)
	s.fs = fsadapter.New(s.bridge)
	s.ed = editor.New(s.cfg.RepoRoot, s.fs)
	s.idx = symbolindex.NewStore(s.rt, handle, s.cfg.RepoRoot)
	s.eng = diffengine.New(s.ed, s.fs, s.cfg.RepoRoot)
	s.disp = dispatcher.New(s.bridge, s.fs, s.ed, s.idx, s.eng, s.cfg.RepoRoot)

	return nil
}

// syncRepo clones the task's mirror into RepoRoot if it isn't there yet,
// then resets the working tree to base_commit regardless.
func (s *Session) syncRepo(ctx context.Context, task *types.Task) error {
	root := s.cfg.RepoRoot
	mirror := s.cfg.RepoMirrorDir + "/" + task.RepoSlug

	cmd := fmt.Sprintf(
		"cd / && (test -d %s/.git || git clone %s %s) && cd %s && git restore . && git reset --hard %s && git clean -fdxq",
		shQuoteReset(root), shQuoteReset(mirror), shQuoteReset(root), shQuoteReset(root), shQuoteReset(task.BaseCommit),
	)

	out, code, err := s.bridge.Communicate(ctx, cmd, shellbridge.LongTimeout)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("repo sync exited %d: %s", code, strings.TrimSpace(out))
	}
	return nil
}

func (s *Session) applyTestPatch(ctx context.Context, patch string) error {
	patchPath := "/root/test.patch"
	if err := s.fs.Write(ctx, patchPath, patch); err != nil {
		return err
	}
	cmd := fmt.Sprintf("cd %s && git apply %s", shQuoteReset(s.cfg.RepoRoot), shQuoteReset(patchPath))
	_, code, err := s.bridge.Communicate(ctx, cmd, shellbridge.DefaultTimeout)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("git apply test patch exited %d", code)
	}
	return nil
}

func shQuoteReset(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
