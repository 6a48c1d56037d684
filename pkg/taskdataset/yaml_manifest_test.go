package taskdataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestYAMLManifestSourceLoadsTask(t *testing.T) {
	path := writeManifest(t, `
apiVersion: sweenv/v1
kind: Task
metadata:
  name: astropy__astropy-1234
spec:
  repo: astropy/astropy
  baseCommit: abc123
  problemStatement: fix the thing
  version: "5.0"
  envActivationCommand: source activate astropy
`)

	src := NewYAMLManifestSource(path)
	tasks, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	require.Equal(t, "astropy__astropy-1234", task.InstanceID)
	require.Equal(t, "astropy/astropy", task.RepoSlug)
	require.Equal(t, "abc123", task.BaseCommit)
	require.Equal(t, "fix the thing", task.ProblemStatement)
	require.Equal(t, "5.0", task.Version)
	require.Equal(t, "source activate astropy", task.EnvActivationCommand)
}

func TestYAMLManifestSourceRejectsWrongKind(t *testing.T) {
	path := writeManifest(t, `
kind: Service
metadata:
  name: x
`)
	_, err := NewYAMLManifestSource(path).Load(context.Background())
	require.Error(t, err)
}

func TestYAMLManifestSourceRequiresName(t *testing.T) {
	path := writeManifest(t, `
kind: Task
spec:
  repo: a/b
`)
	_, err := NewYAMLManifestSource(path).Load(context.Background())
	require.Error(t, err)
}
