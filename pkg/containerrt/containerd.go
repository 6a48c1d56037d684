package containerrt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/containers"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/types"
)

// MaxOpenFiles bounds the container init process's open file descriptors,
// so an agent action loop that leaks file handles across many steps
// cannot exhaust the host.
const MaxOpenFiles = 4096

// withFileDescriptorLimit sets RLIMIT_NOFILE on the container's init
// process directly via the OCI runtime spec, since oci.SpecOpts has no
// higher-level helper for rlimits the way it does for env or mounts.
func withFileDescriptorLimit(limit uint64) oci.SpecOpts {
	return func(_ context.Context, _ oci.Client, _ *containers.Container, s *specs.Spec) error {
		if s.Process == nil {
			s.Process = &specs.Process{}
		}
		s.Process.Rlimits = append(s.Process.Rlimits, specs.POSIXRlimit{
			Type: "RLIMIT_NOFILE",
			Hard: limit,
			Soft: limit,
		})
		return nil
	}
}

const (
	// Namespace is the containerd namespace sweenv runs its sandboxes in.
	Namespace = "sweenv"

	// DefaultSocketPath is the default containerd socket.
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// ContainerdRuntime implements Runtime using containerd.
type ContainerdRuntime struct {
	client    *containerd.Client
	namespace string

	containers map[string]containerd.Container
	tasks      map[string]containerd.Task
}

// NewContainerdRuntime connects to the containerd socket at socketPath (or
// DefaultSocketPath if empty).
func NewContainerdRuntime(socketPath string) (*ContainerdRuntime, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}

	return &ContainerdRuntime{
		client:     client,
		namespace:  Namespace,
		containers: make(map[string]containerd.Container),
		tasks:      make(map[string]containerd.Task),
	}, nil
}

// Close closes the underlying containerd client.
func (r *ContainerdRuntime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *ContainerdRuntime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

// Start pulls imageRef, creates a container for task with a bash login
// shell as its init process, and starts it with stdin/stdout/stderr wired
// to the caller's pipes.
func (r *ContainerdRuntime) Start(ctx context.Context, task *types.Task, imageRef string, stdin io.Reader, stdout, stderr io.Writer) (types.ContainerHandle, error) {
	cctx := r.ctx(ctx)
	logger := log.WithTaskID(task.InstanceID)

	image, err := r.client.Pull(cctx, imageRef, containerd.WithPullUnpack)
	if err != nil {
		return types.ContainerHandle{}, fmt.Errorf("pull image %s: %w", imageRef, err)
	}

	containerID := "sweenv-" + uuid.NewString()

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithProcessArgs("/bin/bash", "-i"),
		withFileDescriptorLimit(MaxOpenFiles),
	}
	if task.EnvActivationCommand != "" {
		opts = append(opts, oci.WithEnv([]string{"SWEENV_ACTIVATE=" + task.EnvActivationCommand}))
	}

	ctrdContainer, err := r.client.NewContainer(
		cctx,
		containerID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(containerID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return types.ContainerHandle{}, fmt.Errorf("create container: %w", err)
	}

	ioCreator := cio.NewCreator(cio.WithStreams(stdin, stdout, stderr))
	task0, err := ctrdContainer.NewTask(cctx, ioCreator)
	if err != nil {
		_ = ctrdContainer.Delete(cctx, containerd.WithSnapshotCleanup)
		return types.ContainerHandle{}, fmt.Errorf("create task: %w", err)
	}

	if err := task0.Start(cctx); err != nil {
		_, _ = task0.Delete(cctx)
		_ = ctrdContainer.Delete(cctx, containerd.WithSnapshotCleanup)
		return types.ContainerHandle{}, fmt.Errorf("start task: %w", err)
	}

	r.containers[containerID] = ctrdContainer
	r.tasks[containerID] = task0

	logger.Info().Str("image", imageRef).Uint32("pid", task0.Pid()).Msg("container started")

	return types.ContainerHandle{ID: containerID}, nil
}

// Exec runs a one-off command inside the container and captures its
// combined output and exit code.
func (r *ContainerdRuntime) Exec(ctx context.Context, handle types.ContainerHandle, args []string) (string, int, error) {
	if len(args) == 0 {
		return "", -1, fmt.Errorf("exec: no command given")
	}
	cctx := r.ctx(ctx)

	task0, ok := r.tasks[handle.ID]
	if !ok {
		return "", -1, fmt.Errorf("exec: unknown container %s", handle.ID)
	}

	spec, err := task0.Spec(cctx)
	if err != nil {
		return "", -1, fmt.Errorf("load container spec: %w", err)
	}
	pspec := *spec.Process
	pspec.Args = args

	execID := "probe-" + uuid.NewString()
	var out bytes.Buffer
	process, err := task0.Exec(cctx, execID, &pspec, cio.NewCreator(cio.WithStreams(nil, &out, &out)))
	if err != nil {
		return "", -1, fmt.Errorf("exec %v: %w", args, err)
	}
	defer process.Delete(cctx)

	statusC, err := process.Wait(cctx)
	if err != nil {
		return "", -1, fmt.Errorf("wait on exec %v: %w", args, err)
	}

	if err := process.Start(cctx); err != nil {
		return "", -1, fmt.Errorf("start exec %v: %w", args, err)
	}

	status := <-statusC
	return out.String(), int(status.ExitCode()), status.Error()
}

// ChildPIDs lists PIDs running in the container's PID namespace as seen
// from the host, by asking /proc inside the namespace via nsenter.
func (r *ContainerdRuntime) ChildPIDs(ctx context.Context, handle types.ContainerHandle) ([]int, error) {
	task0, ok := r.tasks[handle.ID]
	if !ok {
		return nil, fmt.Errorf("child pids: unknown container %s", handle.ID)
	}

	pid := task0.Pid()
	cmd := exec.CommandContext(ctx, "nsenter", "-t", strconv.Itoa(int(pid)), "-p", "--", "ps", "-o", "pid=")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list pids: %w", err)
	}

	var pids []int
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, n)
	}
	return pids, nil
}

// Archive streams path out of the container's mount namespace as a tar
// stream, by nsentering the task's mount namespace and running tar rather
// than going through containerd's snapshotter diff API, which operates on
// whole snapshots rather than a single in-container path.
func (r *ContainerdRuntime) Archive(ctx context.Context, handle types.ContainerHandle, path string) (io.ReadCloser, error) {
	task0, ok := r.tasks[handle.ID]
	if !ok {
		return nil, fmt.Errorf("archive: unknown container %s", handle.ID)
	}

	pid := task0.Pid()
	target := strings.TrimPrefix(path, "/")
	cmd := exec.CommandContext(ctx, "nsenter", "-t", strconv.Itoa(int(pid)), "-m", "--", "tar", "-cf", "-", "-C", "/", target)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("archive %s: %w", path, err)
	}

	return &cmdReadCloser{ReadCloser: stdout, cmd: cmd}, nil
}

// cmdReadCloser waits on the backing process when the tar stream is
// closed, so callers never leak a zombie nsenter/tar pair.
type cmdReadCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (c *cmdReadCloser) Close() error {
	err := c.ReadCloser.Close()
	if waitErr := c.cmd.Wait(); waitErr != nil && err == nil {
		err = waitErr
	}
	return err
}

// Kill sends sig to pid. pid is a host-visible PID, as returned by
// ChildPIDs, so this uses the host signal syscall directly rather than
// another nsenter round trip.
func (r *ContainerdRuntime) Kill(ctx context.Context, handle types.ContainerHandle, pid int, sig syscall.Signal) error {
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

// IP returns the container's eth0 IPv4 address via nsenter, mirroring how
// the teacher runtime resolves container addresses without a separate CNI
// query path.
func (r *ContainerdRuntime) IP(ctx context.Context, handle types.ContainerHandle) (string, error) {
	task0, ok := r.tasks[handle.ID]
	if !ok {
		return "", fmt.Errorf("ip: unknown container %s", handle.ID)
	}

	pid := task0.Pid()
	cmd := exec.CommandContext(ctx, "nsenter", "-t", strconv.Itoa(int(pid)), "-n", "ip", "-4", "addr", "show", "eth0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("get container ip: %w (output: %s)", err, string(output))
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "inet ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		ip, _, err := net.ParseCIDR(parts[1])
		if err != nil {
			return "", fmt.Errorf("parse ip %s: %w", parts[1], err)
		}
		return ip.String(), nil
	}

	return "", fmt.Errorf("no ipv4 address found on eth0")
}

// Stop sends SIGTERM to the container's init task, waits up to timeout,
// force-kills on timeout, then deletes the task, container, and snapshot.
func (r *ContainerdRuntime) Stop(ctx context.Context, handle types.ContainerHandle, timeout time.Duration) error {
	cctx := r.ctx(ctx)

	ctrdContainer, ok := r.containers[handle.ID]
	if !ok {
		return nil
	}
	task0, ok := r.tasks[handle.ID]
	if !ok {
		return ctrdContainer.Delete(cctx, containerd.WithSnapshotCleanup)
	}

	stopCtx, cancel := context.WithTimeout(cctx, timeout)
	defer cancel()

	if err := task0.Kill(stopCtx, syscall.SIGTERM); err != nil {
		log.Logger.Warn().Err(err).Str("container", handle.ID).Msg("sigterm failed")
	}

	statusC, err := task0.Wait(cctx)
	if err != nil {
		return fmt.Errorf("wait for task: %w", err)
	}

	select {
	case <-statusC:
	case <-stopCtx.Done():
		if err := task0.Kill(cctx, syscall.SIGKILL); err != nil {
			return fmt.Errorf("force kill task: %w", err)
		}
		<-statusC
	}

	if _, err := task0.Delete(cctx); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := ctrdContainer.Delete(cctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}

	delete(r.tasks, handle.ID)
	delete(r.containers, handle.ID)
	return nil
}
