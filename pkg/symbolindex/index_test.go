package symbolindex_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/symbolindex"
	"github.com/sweagent/sweenv/pkg/types"
)

func writeRepo(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(
		"package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.py"), []byte(
		"def helper():\n    return 1\n\n\nclass Widget:\n    def render(self):\n        return None\n"), 0o644))
}

func TestEnsureBuildsIndexFromRepo(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root)

	rt := containerrt.NewFakeRuntime()
	store := symbolindex.NewStore(rt, types.ContainerHandle{ID: "x"}, root)

	idx, err := store.Ensure(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, idx.ContentHash)
	require.Contains(t, idx.Functions, "Greet")
	require.Contains(t, idx.Functions, "helper")
	require.Contains(t, idx.Functions, "Widget.render")
	require.Contains(t, idx.Classes, "Widget")
}

func TestEnsureSkipsRebuildWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root)

	rt := containerrt.NewFakeRuntime()
	store := symbolindex.NewStore(rt, types.ContainerHandle{ID: "x"}, root)

	first, err := store.Ensure(context.Background())
	require.NoError(t, err)

	second, err := store.Ensure(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestEnsureRebuildsWhenContentChanges(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root)

	rt := containerrt.NewFakeRuntime()
	store := symbolindex.NewStore(rt, types.ContainerHandle{ID: "x"}, root)

	first, err := store.Ensure(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(
		"package main\n\nfunc Greet() string {\n\treturn \"bye\"\n}\n\nfunc Extra() {}\n"), 0o644))

	second, err := store.Ensure(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.ContentHash, second.ContentHash)
	require.Contains(t, second.Functions, "Extra")
}

func TestResetForcesRebuildEvenIfUnchanged(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root)

	rt := containerrt.NewFakeRuntime()
	store := symbolindex.NewStore(rt, types.ContainerHandle{ID: "x"}, root)

	first, err := store.Ensure(context.Background())
	require.NoError(t, err)

	store.Reset()
	require.Nil(t, store.Current())

	second, err := store.Ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.ContentHash, second.ContentHash)
	require.NotSame(t, first, second)
}

func TestFindFunctionTriggersEnsure(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root)

	rt := containerrt.NewFakeRuntime()
	store := symbolindex.NewStore(rt, types.ContainerHandle{ID: "x"}, root)

	entries, err := store.FindFunction(context.Background(), "Greet")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Source, "return")
}
