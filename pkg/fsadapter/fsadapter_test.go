package fsadapter

import (
	"strings"
	"testing"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/require"
)

func TestHeredocDelimiterAvoidsCollision(t *testing.T) {
	content := "line one\nSWEENV_EOF\nline two\n"
	delim := heredocDelimiter(content)
	require.False(t, strings.Contains(content, delim))
}

func TestShQuoteEscapesSingleQuotes(t *testing.T) {
	quoted := shQuote("it's a path")
	require.Equal(t, `'it'\''s a path'`, quoted)
}

func TestBuildTreeNestsChildren(t *testing.T) {
	listing := "d sub\nf sub/a.py\nf top.py\n"
	tree := buildTree(listing, nil)

	require.Len(t, tree, 2)

	var sub *TreeNode
	for i := range tree {
		if tree[i].Name == "sub" {
			sub = &tree[i]
		}
	}
	require.NotNil(t, sub)
	require.True(t, sub.IsDir)
	require.Len(t, sub.Children, 1)
	require.Equal(t, "a.py", sub.Children[0].Name)
}

func TestBuildTreePrunesGitDir(t *testing.T) {
	listing := "d .git\nf .git/HEAD\nf top.py\n"
	tree := buildTree(listing, nil)

	require.Len(t, tree, 1)
	require.Equal(t, "top.py", tree[0].Name)
}

func TestBuildTreePrunesIgnoredSubtree(t *testing.T) {
	listing := "d vendor\nf vendor/pkg.go\nf main.go\n"
	ignore := gitignore.CompileIgnoreLines("vendor")
	tree := buildTree(listing, ignore)

	require.Len(t, tree, 1)
	require.Equal(t, "main.go", tree[0].Name)
}
