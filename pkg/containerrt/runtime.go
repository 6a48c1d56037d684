// Package containerrt is the sandbox's view of a container runtime: start
// one long-lived task container per session, run an interactive shell inside
// it, list and signal its child processes, and tear it down on reset/close.
// It deliberately exposes far less surface than a cluster container runtime
// would — there is no scheduling, no multi-container orchestration, no
// image registry management beyond a single pull.
package containerrt

import (
	"context"
	"io"
	"syscall"
	"time"

	"github.com/sweagent/sweenv/pkg/types"
)

// Runtime is the sandbox-facing container lifecycle surface. One Runtime
// backs one container for the lifetime of a session.
type Runtime interface {
	// Start pulls imageRef if needed and starts a container for task, with
	// an interactive shell (bash -i or equivalent) as its init process
	// wired to the given stdio. It returns a handle identifying the
	// container; the handle carries only the container ID.
	Start(ctx context.Context, task *types.Task, imageRef string, stdin io.Reader, stdout, stderr io.Writer) (types.ContainerHandle, error)

	// Exec runs an out-of-band command inside the same container namespace,
	// used for PID probing and health-check round trips rather than the
	// interactive shell itself. It blocks until the command exits.
	Exec(ctx context.Context, handle types.ContainerHandle, args []string) (stdout string, exitCode int, err error)

	// ChildPIDs returns the PIDs of processes running inside the container,
	// as seen from the host PID namespace.
	ChildPIDs(ctx context.Context, handle types.ContainerHandle) ([]int, error)

	// Kill sends sig to a specific host-visible PID inside the container.
	Kill(ctx context.Context, handle types.ContainerHandle, pid int, sig syscall.Signal) error

	// IP returns the container's IPv4 address, if the image configures
	// networking.
	IP(ctx context.Context, handle types.ContainerHandle) (string, error)

	// Archive streams path out of the container as a tar, for the symbol
	// index's local snapshot-and-parse step.
	Archive(ctx context.Context, handle types.ContainerHandle, path string) (io.ReadCloser, error)

	// Stop sends SIGTERM, waits up to timeout, then SIGKILLs and deletes
	// the container and its snapshot.
	Stop(ctx context.Context, handle types.ContainerHandle, timeout time.Duration) error
}
