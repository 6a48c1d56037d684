// Package fsadapter is a thin, typed layer over the shell bridge: every
// operation is one round trip through the container's shell, with the
// shell's non-zero exit codes turned into typed errors instead of silent
// empty results.
package fsadapter

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/sweagent/sweenv/pkg/shellbridge"
)

// Communicator is the shell round-trip primitive fsadapter needs. It is
// satisfied by *shellbridge.Bridge; tests can supply a fake.
type Communicator interface {
	Communicate(ctx context.Context, input string, timeout time.Duration) (string, int, error)
}

// MaxGrepMatchFiles caps grep_in_dir results; beyond this the caller must
// narrow its search rather than flood the observation with matches.
const MaxGrepMatchFiles = 100

// ErrTooManyMatches is returned when a grep would touch more than
// MaxGrepMatchFiles files.
var ErrTooManyMatches = errors.New("fsadapter: too many matching files, narrow your search")

// ErrNotFound is returned when a path does not exist.
var ErrNotFound = errors.New("fsadapter: not found")

// FS wraps a shell bridge with typed filesystem primitives.
type FS struct {
	bridge Communicator
	ignore gitignore.IgnoreParser
}

// New wraps bridge.
func New(bridge Communicator) *FS {
	return &FS{bridge: bridge}
}

// LoadGitignore reads root's .gitignore, if any, so ListTree can filter
// ignored paths out of its result the way a human browsing the repo would
// never see .git internals or a vendored dependency tree. A missing
// .gitignore is not an error; it just means nothing is filtered.
func (f *FS) LoadGitignore(ctx context.Context, root string) error {
	content, err := f.Read(ctx, root+"/.gitignore")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			f.ignore = nil
			return nil
		}
		return err
	}
	f.ignore = gitignore.CompileIgnoreLines(strings.Split(content, "\n")...)
	return nil
}

func (f *FS) run(ctx context.Context, cmd string) (string, int, error) {
	return f.bridge.Communicate(ctx, cmd, shellbridge.DefaultTimeout)
}

// Exists reports whether p exists.
func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	_, code, err := f.run(ctx, fmt.Sprintf("test -e %s", shQuote(p)))
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// Read returns p's contents.
func (f *FS) Read(ctx context.Context, p string) (string, error) {
	out, code, err := f.run(ctx, fmt.Sprintf("cat %s", shQuote(p)))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return out, nil
}

// Write overwrites p with content, using a heredoc whose delimiter is
// chosen so it cannot collide with content.
func (f *FS) Write(ctx context.Context, p, content string) error {
	delim := heredocDelimiter(content)
	cmd := fmt.Sprintf("cat > %s <<'%s'\n%s\n%s", shQuote(p), delim, content, delim)
	_, code, err := f.run(ctx, cmd)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("fsadapter: write %s failed with exit %d", p, code)
	}
	return nil
}

// Delete removes p.
func (f *FS) Delete(ctx context.Context, p string) error {
	_, code, err := f.run(ctx, fmt.Sprintf("rm -f %s", shQuote(p)))
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("fsadapter: delete %s failed with exit %d", p, code)
	}
	return nil
}

// TreeNode is one entry in a ListTree result.
type TreeNode struct {
	Name     string
	IsDir    bool
	Children []TreeNode
}

// ListTree returns the nested directory tree rooted at p.
func (f *FS) ListTree(ctx context.Context, p string) ([]TreeNode, error) {
	out, code, err := f.run(ctx, fmt.Sprintf("find %s -mindepth 1 -printf '%%y %%P\\n' 2>/dev/null | sort", shQuote(p)))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return buildTree(out, f.ignore), nil
}

func buildTree(listing string, ignore gitignore.IgnoreParser) []TreeNode {
	type entry struct {
		isDir bool
		parts []string
	}
	var entries []entry
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		entries = append(entries, entry{isDir: fields[0] == "d", parts: strings.Split(fields[1], "/")})
	}

	// Every slice gets its final capacity up front, so an append never
	// reallocates and the pointers kept in index stay valid.
	childCount := map[string]int{}
	for _, e := range entries {
		childCount[strings.Join(e.parts[:len(e.parts)-1], "/")]++
	}

	root := make([]TreeNode, 0, len(entries))
	index := map[string]*TreeNode{}
	pruned := map[string]bool{}

	find := func(path string) *TreeNode {
		return index[path]
	}

	for _, e := range entries {
		path := strings.Join(e.parts, "/")
		parentPath := strings.Join(e.parts[:len(e.parts)-1], "/")

		if pruned[parentPath] {
			pruned[path] = true
			continue
		}
		if e.parts[0] == ".git" || (ignore != nil && ignore.MatchesPath(path)) {
			pruned[path] = true
			continue
		}

		node := TreeNode{Name: e.parts[len(e.parts)-1], IsDir: e.isDir}
		if n := childCount[path]; n > 0 {
			node.Children = make([]TreeNode, 0, n)
		}

		if parentPath == "" {
			root = append(root, node)
			index[path] = &root[len(root)-1]
			continue
		}
		parent := find(parentPath)
		if parent == nil {
			root = append(root, node)
			index[path] = &root[len(root)-1]
			continue
		}
		parent.Children = append(parent.Children, node)
		index[path] = &parent.Children[len(parent.Children)-1]
	}
	return root
}

// FindByName returns paths under root whose basename matches name.
func (f *FS) FindByName(ctx context.Context, root, name string) ([]string, error) {
	out, code, err := f.run(ctx, fmt.Sprintf("find %s -name %s 2>/dev/null", shQuote(root), shQuote(name)))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	return splitNonEmpty(out), nil
}

// GrepMatch is one file's match count from GrepInDir.
type GrepMatch struct {
	Path  string
	Count int
}

// GrepInDir returns per-file match counts for term under dir, capped at
// MaxGrepMatchFiles.
func (f *FS) GrepInDir(ctx context.Context, term, dir string) ([]GrepMatch, error) {
	out, _, err := f.run(ctx, fmt.Sprintf("grep -rc -- %s %s 2>/dev/null | grep -v ':0$'", shQuote(term), shQuote(dir)))
	if err != nil {
		return nil, err
	}

	lines := splitNonEmpty(out)
	if len(lines) > MaxGrepMatchFiles {
		return nil, ErrTooManyMatches
	}

	matches := make([]GrepMatch, 0, len(lines))
	for _, line := range lines {
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		count, err := strconv.Atoi(line[idx+1:])
		if err != nil {
			continue
		}
		matches = append(matches, GrepMatch{Path: line[:idx], Count: count})
	}
	return matches, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func heredocDelimiter(content string) string {
	base := "SWEENV_EOF"
	for strings.Contains(content, base) {
		buf := make([]byte, 4)
		_, _ = rand.Read(buf)
		base = "SWEENV_EOF_" + hex.EncodeToString(buf)
	}
	return base
}
