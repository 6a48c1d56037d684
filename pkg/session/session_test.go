package session_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/ledger"
	"github.com/sweagent/sweenv/pkg/session"
	"github.com/sweagent/sweenv/pkg/types"
)

// setupMirror creates a tiny git repo under mirrorDir/repoSlug with one
// commit, and returns that commit's sha.
func setupMirror(t *testing.T, mirrorDir, repoSlug string) string {
	t.Helper()
	repoDir := filepath.Join(mirrorDir, repoSlug)
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = repoDir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	require.NoError(t, os.MkdirAll(repoDir, 0o755))
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "a.py"), []byte("def f():\n    return 1\n"), 0o644))
	run("add", "-A")
	run("commit", "-q", "-m", "initial")

	out, err := exec.Command("git", "-C", repoDir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestResetStepCloseLifecycle(t *testing.T) {
	mirrorDir := t.TempDir()
	baseCommit := setupMirror(t, mirrorDir, "myrepo")

	repoRoot := filepath.Join(t.TempDir(), "testbed")

	cfg := session.DefaultConfig()
	cfg.RepoRoot = repoRoot
	cfg.RepoMirrorDir = mirrorDir

	rt := containerrt.NewFakeRuntime()
	store, err := ledger.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	sess := session.New(cfg, rt, store, nil)

	task := &types.Task{
		InstanceID: "inst-1",
		RepoSlug:   "myrepo",
		BaseCommit: baseCommit,
	}

	ctx := context.Background()
	require.NoError(t, sess.Reset(ctx, task))

	result, err := sess.Step(ctx, "open_file "+repoRoot+"/a.py", "")
	require.NoError(t, err)
	require.False(t, result.Done)
	require.Contains(t, result.Observation, "return 1")

	skipResult, err := sess.Step(ctx, "skip", "")
	require.NoError(t, err)
	require.True(t, skipResult.Done)
	require.Equal(t, types.ExitStatusSkipped, skipResult.ExitStatus)

	steps, err := store.ListSteps(sess.ID())
	require.NoError(t, err)
	require.Len(t, steps, 2)

	require.NoError(t, sess.Close(ctx))
	require.NoError(t, sess.Close(ctx)) // idempotent
}
