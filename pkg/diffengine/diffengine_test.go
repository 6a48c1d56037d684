package diffengine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/diffengine"
	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/fsadapter"
)

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
	return "", 0, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return s
}

func newTestEngine() (*diffengine.Engine, *fakeFS) {
	fake := newFakeFS()
	fs := fsadapter.New(fake)
	ed := editor.New("/repo", fs)
	return diffengine.New(ed, fs, "/repo"), fake
}

const sampleGo = "package main\n\nfunc Greet() string {\n\treturn \"hi\"\n}\n"

func TestParseDiffSingleHunk(t *testing.T) {
	blob := "--- a/main.go\n" +
		"+++ b/main.go\n" +
		"@@ -1,5 +1,5 @@\n" +
		" package main\n" +
		" \n" +
		" func Greet() string {\n" +
		"-\treturn \"hi\"\n" +
		"+\treturn \"hello\"\n" +
		" }\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	require.Equal(t, "a/main.go", diffs[0].SrcFile)
	require.Equal(t, "b/main.go", diffs[0].TgtFile)
	require.Len(t, diffs[0].Hunks, 1)
	require.Equal(t, []string{"\treturn \"hi\""}, diffs[0].Hunks[0].Removed)
	require.Equal(t, []string{"\treturn \"hello\""}, diffs[0].Hunks[0].Added)
}

func TestParseDiffMissingTargetFailsWholeBlob(t *testing.T) {
	blob := "--- a/main.go\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-\treturn \"hi\"\n" +
		"+\treturn \"hello\"\n"

	_, err := diffengine.ParseDiff(blob)
	require.ErrorIs(t, err, diffengine.ErrHallucination)
}

func TestApplyValidGoDiffSucceeds(t *testing.T) {
	eng, fake := newTestEngine()
	fake.files["/repo/main.go"] = sampleGo

	blob := "--- /repo/main.go\n" +
		"+++ /repo/main.go\n" +
		"@@ -1,5 +1,5 @@\n" +
		" package main\n" +
		" \n" +
		" func Greet() string {\n" +
		"-\treturn \"hi\"\n" +
		"+\treturn \"hello\"\n" +
		" }\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)

	result := eng.Apply(context.Background(), "/repo", diffs)
	require.Empty(t, result.Fail)
	require.Len(t, result.Success, 1)
	require.Contains(t, result.Success[0].NewContents, `"hello"`)
	require.Contains(t, fake.files["/repo/main.go"], "hello")
}

func TestApplyRejectsBrokenSyntax(t *testing.T) {
	eng, fake := newTestEngine()
	fake.files["/repo/main.go"] = sampleGo

	blob := "--- /repo/main.go\n" +
		"+++ /repo/main.go\n" +
		"@@ -1,5 +1,5 @@\n" +
		" package main\n" +
		" \n" +
		" func Greet() string {\n" +
		"-\treturn \"hi\"\n" +
		"+\treturn \"hi\"\n" +
		"+func broken( {\n" +
		" }\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)

	result := eng.Apply(context.Background(), "/repo", diffs)
	require.Len(t, result.Fail, 1)
	require.Empty(t, result.Success)
	require.Equal(t, sampleGo, fake.files["/repo/main.go"])
}

func TestApplyRejectsTestsPath(t *testing.T) {
	eng, fake := newTestEngine()
	fake.files["/repo/tests/test_a.py"] = "x = 1\n"

	blob := "--- /repo/tests/test_a.py\n" +
		"+++ /repo/tests/test_a.py\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-x = 1\n" +
		"+x = 2\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)

	result := eng.Apply(context.Background(), "/repo", diffs)
	require.Len(t, result.Fail, 1)
	require.Contains(t, result.Fail[0].Reason, "tests")
	require.Equal(t, "x = 1\n", fake.files["/repo/tests/test_a.py"])
}

func TestApplyAmbiguousAnchorFailsFileLeavesDiskUntouched(t *testing.T) {
	eng, fake := newTestEngine()
	dup := "package main\n\n" +
		"func Greet() string {\n\treturn \"hi\"\n}\n\n" +
		"func GreetAgain() string {\n\treturn \"hi\"\n}\n"
	fake.files["/repo/main.go"] = dup

	blob := "--- /repo/main.go\n" +
		"+++ /repo/main.go\n" +
		"@@ -1,1 +1,1 @@\n" +
		"-\treturn \"hi\"\n" +
		"+\treturn \"hello\"\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)

	result := eng.Apply(context.Background(), "/repo", diffs)
	require.Len(t, result.Fail, 1)
	require.Empty(t, result.Success)
	require.Contains(t, result.Fail[0].Reason, "ambiguous")
	require.Equal(t, dup, fake.files["/repo/main.go"])
}

func TestApplyHunkNotFoundFailsFileLeavesDiskUntouched(t *testing.T) {
	eng, fake := newTestEngine()
	fake.files["/repo/main.go"] = sampleGo

	blob := "--- /repo/main.go\n" +
		"+++ /repo/main.go\n" +
		"@@ -1,3 +1,3 @@\n" +
		" this context does not exist anywhere\n" +
		"-neither does this\n" +
		"+so this cannot anchor\n"

	diffs, err := diffengine.ParseDiff(blob)
	require.NoError(t, err)

	result := eng.Apply(context.Background(), "/repo", diffs)
	require.Len(t, result.Fail, 1)
	require.Contains(t, result.Fail[0].Reason, "not found")
	require.Equal(t, sampleGo, fake.files["/repo/main.go"])
}
