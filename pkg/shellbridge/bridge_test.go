package shellbridge_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/shellbridge"
	"github.com/sweagent/sweenv/pkg/types"
)

func newTestBridge(t *testing.T) *shellbridge.Bridge {
	t.Helper()
	b, _ := newTestBridgeWithStdin(t)
	return b
}

func newTestBridgeWithStdin(t *testing.T) (*shellbridge.Bridge, io.WriteCloser) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	rt := containerrt.NewFakeRuntime()
	handle, err := rt.Start(context.Background(), &types.Task{InstanceID: "t1"}, "", stdinR, stdoutW, stdoutW)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rt.Stop(context.Background(), handle, time.Second)
	})

	return shellbridge.New(rt, handle, stdinW, stdoutR, nil), stdinW
}

func TestCommunicateHappyPath(t *testing.T) {
	b := newTestBridge(t)

	out, code, err := b.Communicate(context.Background(), "echo hello", shellbridge.DefaultTimeout)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.True(t, strings.Contains(out, "hello"))
}

func TestCommunicateNonZeroExit(t *testing.T) {
	b := newTestBridge(t)

	_, code, err := b.Communicate(context.Background(), "false", shellbridge.DefaultTimeout)
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestInterruptFallsBackToExecCheckerOnWriteFailure(t *testing.T) {
	b, stdin := newTestBridgeWithStdin(t)
	require.NoError(t, stdin.Close())

	err := b.Interrupt(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, shellbridge.ErrInterruptFailed)
}

func TestCommunicateAfterTimeoutStillAlive(t *testing.T) {
	b := newTestBridge(t)

	_, _, err := b.Communicate(context.Background(), "sleep 5", 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TIMED OUT")

	out, code, err := b.Communicate(context.Background(), "echo still-alive", shellbridge.DefaultTimeout)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Contains(t, out, "still-alive")
}
