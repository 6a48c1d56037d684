package session

import "time"

// Config is the flat, flag-populated configuration for one Session.
// cmd/sweenv builds this from CLI flags and environment variable
// overrides; nothing in this package reads the environment directly.
type Config struct {
	// ImageRef is the container image pulled on first reset.
	ImageRef string

	// RepoRoot is the absolute path inside the container where the task's
	// repo is checked out, e.g. "/testbed".
	RepoRoot string

	// RepoMirrorDir is a local path (inside the container) holding bare
	// git mirrors keyed by RepoSlug, used as the clone source on reset.
	RepoMirrorDir string

	// StartTimeout bounds the initial container start + shell init.
	StartTimeout time.Duration

	// StopTimeout bounds the graceful-stop window before SIGKILL on close.
	StopTimeout time.Duration

	// Oracle applies the task's test patch during reset, for building a
	// reference/gold trajectory rather than an agent-driven one.
	Oracle bool
}

// DefaultConfig returns sane defaults for interactive use.
func DefaultConfig() Config {
	return Config{
		ImageRef:      "sweenv/swebench-base:latest",
		RepoRoot:      "/testbed",
		RepoMirrorDir: "/root/repo-mirrors",
		StartTimeout:  120 * time.Second,
		StopTimeout:   10 * time.Second,
		Oracle:        false,
	}
}
