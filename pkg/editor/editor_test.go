package editor_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/fsadapter"
)

// fakeFS is a minimal in-memory filesystem driven through the same
// command strings fsadapter would send to a real shell, enough to back
// Exists/Read/Write/Delete without a container.
type fakeFS struct {
	files map[string]string
}

func newFakeFS() *fakeFS { return &fakeFS{files: map[string]string{}} }

func (f *fakeFS) Communicate(ctx context.Context, input string, timeout time.Duration) (string, int, error) {
	switch {
	case strings.HasPrefix(input, "test -e "):
		p := unquote(strings.TrimPrefix(input, "test -e "))
		if _, ok := f.files[p]; ok {
			return "", 0, nil
		}
		return "", 1, nil
	case strings.HasPrefix(input, "cat > "):
		rest := strings.TrimPrefix(input, "cat > ")
		pathPart := strings.SplitN(rest, " <<'", 2)[0]
		p := unquote(pathPart)
		lines := strings.SplitN(input, "\n", 2)
		body := lines[1]
		body = body[:strings.LastIndex(body, "\n")]
		f.files[p] = body
		return "", 0, nil
	case strings.HasPrefix(input, "cat "):
		p := unquote(strings.TrimPrefix(input, "cat "))
		content, ok := f.files[p]
		if !ok {
			return "", 1, nil
		}
		return content, 0, nil
	case strings.HasPrefix(input, "rm -f "):
		p := unquote(strings.TrimPrefix(input, "rm -f "))
		delete(f.files, p)
		return "", 0, nil
	}
	return "", 0, fmt.Errorf("unhandled command: %s", input)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}

func newTestEditor() (*editor.Editor, *fakeFS) {
	fake := newFakeFS()
	fs := fsadapter.New(fake)
	return editor.New("/repo", fs), fake
}

func TestOpenCloseCreateDeleteKeyset(t *testing.T) {
	ed, fake := newTestEditor()
	fake.files["/repo/a.py"] = "line1\nline2\n"

	_, err := ed.OpenFile(context.Background(), "/repo/a.py")
	require.NoError(t, err)
	require.True(t, ed.IsOpen("/repo/a.py"))

	_, err = ed.CreateFile(context.Background(), "/repo/b.py", "x = 1\n")
	require.NoError(t, err)
	require.True(t, ed.IsOpen("/repo/b.py"))

	ed.CloseFile("/repo/a.py")
	require.False(t, ed.IsOpen("/repo/a.py"))

	require.NoError(t, ed.DeleteFile(context.Background(), "/repo/b.py"))
	require.False(t, ed.IsOpen("/repo/b.py"))
	require.Empty(t, ed.OpenPaths())
}

func TestOpenAlreadyOpenFails(t *testing.T) {
	ed, fake := newTestEditor()
	fake.files["/repo/a.py"] = "x\n"

	_, err := ed.OpenFile(context.Background(), "/repo/a.py")
	require.NoError(t, err)

	_, err = ed.OpenFile(context.Background(), "/repo/a.py")
	require.ErrorIs(t, err, editor.ErrAlreadyOpen)
}

func TestScrollToLineMapsPage(t *testing.T) {
	ed, fake := newTestEditor()
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("line\n")
	}
	fake.files["/repo/big.py"] = b.String()

	_, err := ed.OpenFile(context.Background(), "/repo/big.py")
	require.NoError(t, err)

	page, err := ed.ScrollToLine("/repo/big.py", 450)
	require.NoError(t, err)
	require.Equal(t, (450-1)/editor.PageSize, page)
}

func TestRefreshPicksUpDiskChanges(t *testing.T) {
	ed, fake := newTestEditor()
	fake.files["/repo/a.py"] = "old\n"

	rec, err := ed.OpenFile(context.Background(), "/repo/a.py")
	require.NoError(t, err)
	require.Equal(t, "old\n", rec.Contents)

	fake.files["/repo/a.py"] = "new\n"
	require.NoError(t, ed.Refresh(context.Background()))
	require.Equal(t, "new\n", rec.Contents)
}
