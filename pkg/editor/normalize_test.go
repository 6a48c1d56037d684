package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAlreadyUnderRoot(t *testing.T) {
	require.Equal(t, "/repo/a.py", Normalize("/repo", "/repo", "/repo/a.py"))
}

func TestNormalizeRelativeResolvesAgainstCWD(t *testing.T) {
	require.Equal(t, "/repo/sub/a.py", Normalize("/repo", "/repo/sub", "a.py"))
}

func TestNormalizeEscapeIsReRooted(t *testing.T) {
	got := Normalize("/repo", "/", "../../etc/passwd")
	require.True(t, strings.HasPrefix(got, "/repo"))
	require.False(t, strings.Contains(got, ".."))
}

func TestNormalizeNeverEscapesRoot(t *testing.T) {
	cases := []struct{ cwd, p string }{
		{"/repo", "/other/file.py"},
		{"/", "file.py"},
		{"/repo/a/b", "../../../../x.py"},
	}
	for _, c := range cases {
		got := Normalize("/repo", c.cwd, c.p)
		require.True(t, strings.HasPrefix(got, "/repo"), "got %q for cwd=%q p=%q", got, c.cwd, c.p)
		require.False(t, strings.Contains(got, ".."))
	}
}
