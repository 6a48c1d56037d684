package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/events"
	"github.com/sweagent/sweenv/pkg/ledger"
	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/session"
	"github.com/sweagent/sweenv/pkg/taskdataset"
	"github.com/sweagent/sweenv/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one task episode against a stream of actions",
	Long: `run resets a single task into a container, then feeds it one
action per line (from --actions-file, or stdin if unset) through the
dispatcher, printing the observation for each until the episode ends.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("tasks", "", "path to a JSONL task dataset")
	runCmd.Flags().String("instance-id", "", "instance_id of the task to run from --tasks")
	runCmd.Flags().String("task-manifest", "", "path to a single-task YAML manifest, in place of --tasks/--instance-id")
	runCmd.Flags().String("actions-file", "", "file of newline-delimited actions; reads stdin if unset")

	runCmd.Flags().String("image", "", "container image override")
	runCmd.Flags().String("repo-root", "", "container path the repo is checked out to")
	runCmd.Flags().String("repo-mirror-dir", "", "container path holding repo mirrors keyed by repo slug")
	runCmd.Flags().Duration("start-timeout", 0, "container start timeout")
	runCmd.Flags().Duration("stop-timeout", 0, "container stop timeout")
	runCmd.Flags().Bool("oracle", false, "apply the task's test patch during reset (gold trajectory mode)")

	runCmd.Flags().Bool("health-check", false, "run a container health check after reset and fail fast if it does not pass")
	runCmd.Flags().String("containerd-socket", "", "containerd socket path; uses an in-process fake runtime if unset")
	runCmd.Flags().String("data-dir", "./sweenv-data", "directory for the step ledger")
	runCmd.Flags().String("metrics-addr", "", "if set, serve Prometheus metrics on this address")

}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	task, err := loadTask(ctx, cmd)
	if err != nil {
		return err
	}
	applyEnvironment(task)

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	rt, closeRt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeRt()

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := ledger.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	sess := session.New(cfg, rt, store, broker)
	if err := sess.Reset(ctx, task); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	defer sess.Close(ctx)

	if checkHealth, _ := cmd.Flags().GetBool("health-check"); checkHealth {
		if checker := sess.HealthChecker(); checker != nil {
			result := checker.Check(ctx)
			if !result.Healthy {
				return fmt.Errorf("container health check failed: %s", result.Message)
			}
			log.Logger.Info().Str("message", result.Message).Msg("container health check passed")
		}
	}

	actions, err := openActions(cmd)
	if err != nil {
		return err
	}
	defer actions.Close()

	scanner := bufio.NewScanner(actions)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		result, err := sess.Step(ctx, line, "")
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}

		fmt.Println(result.Observation)

		if result.Done {
			if result.Patch != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "---PATCH---")
				fmt.Fprintln(cmd.OutOrStdout(), result.Patch)
			}
			return nil
		}
	}
	return scanner.Err()
}

func loadTask(ctx context.Context, cmd *cobra.Command) (*types.Task, error) {
	manifestPath, _ := cmd.Flags().GetString("task-manifest")
	if manifestPath != "" {
		tasks, err := taskdataset.NewYAMLManifestSource(manifestPath).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load task manifest: %w", err)
		}
		return &tasks[0], nil
	}

	path, _ := cmd.Flags().GetString("tasks")
	instanceID, _ := cmd.Flags().GetString("instance-id")
	if path == "" || instanceID == "" {
		return nil, fmt.Errorf("either --task-manifest, or both --tasks and --instance-id, must be set")
	}

	src := taskdataset.NewLocalJSONLSource(path)
	tasks, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	for i := range tasks {
		if tasks[i].InstanceID == instanceID {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("instance_id %q not found in %s", instanceID, path)
}

// applyEnvironment forwards ANTHROPIC_API_KEY and GITHUB_TOKEN, when set in
// sweenv's own environment, into the task's activation command so they are
// exported inside the container shell for whatever invokes them there (a
// planner, or git operations against a private mirror). sweenv itself never
// reads either key.
func applyEnvironment(task *types.Task) {
	var exports []string
	for _, name := range []string{"ANTHROPIC_API_KEY", "GITHUB_TOKEN"} {
		if v := os.Getenv(name); v != "" {
			exports = append(exports, fmt.Sprintf("export %s=%q", name, v))
		}
	}
	if len(exports) == 0 {
		return
	}
	prefix := strings.Join(exports, "; ")
	if task.EnvActivationCommand == "" {
		task.EnvActivationCommand = prefix
	} else {
		task.EnvActivationCommand = prefix + "; " + task.EnvActivationCommand
	}
}

func buildConfig(cmd *cobra.Command) (session.Config, error) {
	cfg := session.DefaultConfig()

	if v, _ := cmd.Flags().GetString("image"); v != "" {
		cfg.ImageRef = v
	} else if v := os.Getenv("SWEENV_IMAGE"); v != "" {
		cfg.ImageRef = v
	}
	if v, _ := cmd.Flags().GetString("repo-root"); v != "" {
		cfg.RepoRoot = v
	}
	if v, _ := cmd.Flags().GetString("repo-mirror-dir"); v != "" {
		cfg.RepoMirrorDir = v
	}
	if v, _ := cmd.Flags().GetDuration("start-timeout"); v != 0 {
		cfg.StartTimeout = v
	}
	if v, _ := cmd.Flags().GetDuration("stop-timeout"); v != 0 {
		cfg.StopTimeout = v
	}
	oracle, _ := cmd.Flags().GetBool("oracle")
	cfg.Oracle = oracle

	return cfg, nil
}

// buildRuntime picks a containerd-backed runtime when --containerd-socket is
// given, and falls back to the in-process fake runtime otherwise, so `run`
// is usable for local dry runs without a containerd daemon.
func buildRuntime(cmd *cobra.Command) (containerrt.Runtime, func(), error) {
	socket, _ := cmd.Flags().GetString("containerd-socket")
	if socket == "" {
		rt := containerrt.NewFakeRuntime()
		return rt, func() {}, nil
	}

	rt, err := containerrt.NewContainerdRuntime(socket)
	if err != nil {
		return nil, nil, fmt.Errorf("connect containerd: %w", err)
	}
	return rt, func() { _ = rt.Close() }, nil
}

func openActions(cmd *cobra.Command) (io.ReadCloser, error) {
	path, _ := cmd.Flags().GetString("actions-file")
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open actions file: %w", err)
	}
	return f, nil
}

