package taskdataset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/taskdataset"
)

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLocalJSONLSourceLoadsTasks(t *testing.T) {
	path := writeJSONL(t,
		`{"instance_id": "astropy__astropy-1", "repo": "astropy/astropy", "base_commit": "abc123", "problem_statement": "fix the bug", "test_patch": "diff --git a/t.py b/t.py\n", "version": "1.0"}`,
		"",
		`{"instance_id": "astropy__astropy-2", "repo": "astropy/astropy", "base_commit": "def456", "problem_statement": "fix another bug", "test_patch": "", "version": "1.0", "env_activation_command": "source /opt/venv/bin/activate"}`,
	)

	src := taskdataset.NewLocalJSONLSource(path)
	tasks, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	require.Equal(t, "astropy__astropy-1", tasks[0].InstanceID)
	require.Equal(t, "astropy/astropy", tasks[0].RepoSlug)
	require.Equal(t, "abc123", tasks[0].BaseCommit)
	require.Equal(t, "fix the bug", tasks[0].ProblemStatement)
	require.Empty(t, tasks[0].EnvActivationCommand)

	require.Equal(t, "source /opt/venv/bin/activate", tasks[1].EnvActivationCommand)
}

func TestLocalJSONLSourceRejectsMissingInstanceID(t *testing.T) {
	path := writeJSONL(t, `{"repo": "astropy/astropy", "base_commit": "abc123"}`)

	src := taskdataset.NewLocalJSONLSource(path)
	_, err := src.Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing instance_id")
}

func TestLocalJSONLSourceRejectsMalformedLine(t *testing.T) {
	path := writeJSONL(t, `{not json}`)

	src := taskdataset.NewLocalJSONLSource(path)
	_, err := src.Load(context.Background())
	require.Error(t, err)
}

func TestLocalJSONLSourceMissingFile(t *testing.T) {
	src := taskdataset.NewLocalJSONLSource(filepath.Join(t.TempDir(), "nope.jsonl"))
	_, err := src.Load(context.Background())
	require.Error(t, err)
}
