package diffengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/types"
)

// ErrTestsPathGuard is returned when a diff touches a path under /tests/,
// which the engine refuses to modify regardless of patch mode.
var ErrTestsPathGuard = errors.New("diffengine: refusing to modify a path under /tests/")

// ErrHunkNotFound is returned when a hunk's anchor context cannot be
// located in the current file contents, even fuzzily.
var ErrHunkNotFound = errors.New("diffengine: hunk context not found")

// ErrHunkAmbiguous is returned when a hunk's anchor context matches more
// than one location in the current file contents.
var ErrHunkAmbiguous = errors.New("diffengine: hunk context is ambiguous")

// Engine applies parsed diffs against one repo's editor/filesystem pair.
type Engine struct {
	ed       *editor.Editor
	fs       *fsadapter.FS
	repoRoot string
}

// New creates an Engine rooted at repoRoot, composing ed and fs as
// siblings: the engine may call into either, but neither calls into the
// other or into the engine.
func New(ed *editor.Editor, fs *fsadapter.FS, repoRoot string) *Engine {
	return &Engine{ed: ed, fs: fs, repoRoot: repoRoot}
}

// Apply applies every file in diffs independently: a failure on one file
// never touches another, and a file's hunks apply all-or-nothing.
func (e *Engine) Apply(ctx context.Context, cwd string, diffs []types.FileDiff) types.DiffResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DiffApplyDuration)

	var result types.DiffResult
	for _, fd := range diffs {
		path := e.ed.Normalize(cwd, fd.TgtFile)
		if path == "" || fd.TgtFile == "/dev/null" {
			path = e.ed.Normalize(cwd, fd.SrcFile)
		}

		if strings.Contains(path, "/tests/") {
			result.Fail = append(result.Fail, types.FileFailure{Path: path, Reason: ErrTestsPathGuard.Error()})
			metrics.DiffFilesTotal.WithLabelValues("rejected").Inc()
			continue
		}

		success, failure := e.applyOne(ctx, path, fd)
		if failure != nil {
			result.Fail = append(result.Fail, *failure)
			metrics.DiffFilesTotal.WithLabelValues("rejected").Inc()
			continue
		}
		result.Success = append(result.Success, *success)
		metrics.DiffFilesTotal.WithLabelValues("applied").Inc()
	}
	return result
}

func (e *Engine) applyOne(ctx context.Context, path string, fd types.FileDiff) (*types.FileSuccess, *types.FileFailure) {
	creating := len(fd.Hunks) == 1 && len(fd.Hunks[0].ContextBefore) == 0 && len(fd.Hunks[0].ContextAfter) == 0 && len(fd.Hunks[0].Removed) == 0 && fd.SrcFile == "/dev/null"

	var oldContents string
	if !creating {
		exists, err := e.fs.Exists(ctx, path)
		if err != nil {
			return nil, &types.FileFailure{Path: path, Reason: err.Error()}
		}
		if !exists {
			return nil, &types.FileFailure{Path: path, Reason: "file does not exist"}
		}
		oldContents, err = e.fs.Read(ctx, path)
		if err != nil {
			return nil, &types.FileFailure{Path: path, Reason: err.Error()}
		}
	}

	lines := splitLines(oldContents)
	for _, h := range fd.Hunks {
		newLines, err := applyHunk(lines, h)
		if err != nil {
			return nil, &types.FileFailure{Path: path, Reason: err.Error(), OldContents: oldContents}
		}
		lines = newLines
	}
	newContents := strings.Join(lines, "\n")

	if reason, ok := checkSyntax(path, newContents); !ok {
		return nil, &types.FileFailure{Path: path, Reason: reason, OldContents: oldContents}
	}

	if err := e.writeResult(ctx, path, creating, newContents); err != nil {
		return nil, &types.FileFailure{Path: path, Reason: err.Error(), OldContents: oldContents}
	}

	lintDelta := lintDelta(path, oldContents, newContents)

	return &types.FileSuccess{
		Path:        path,
		NewContents: newContents,
		OldContents: oldContents,
		LintDelta:   lintDelta,
	}, nil
}

func (e *Engine) writeResult(ctx context.Context, path string, creating bool, contents string) error {
	if creating {
		if e.ed.IsOpen(path) {
			e.ed.CloseFile(path)
		}
		_, err := e.ed.CreateFile(ctx, path, contents)
		return err
	}
	return e.ed.WriteFile(ctx, path, contents)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// applyHunk finds h's anchor (context before + removed + context after)
// inside lines using whitespace-insensitive fuzzy matching, and replaces it
// with context before + added + context after.
func applyHunk(lines []string, h types.Hunk) ([]string, error) {
	anchor := concat(h.ContextBefore, h.Removed, h.ContextAfter)
	replacement := concat(h.ContextBefore, h.Added, h.ContextAfter)

	if len(anchor) == 0 {
		// pure insertion with no context: append at end
		return append(append([]string{}, lines...), h.Added...), nil
	}

	idx, err := fuzzyFind(lines, anchor)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(lines)-len(anchor)+len(replacement))
	out = append(out, lines[:idx]...)
	out = append(out, replacement...)
	out = append(out, lines[idx+len(anchor):]...)
	return out, nil
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// fuzzyFind scans the whole file for anchor, comparing each line with
// leading/trailing whitespace stripped so reindented context still anchors
// correctly. A hunk whose anchor matches nowhere, or matches more than
// once, fails rather than silently applying to the first occurrence: an
// edit aimed at one of several identical functions must name enough
// context to pick a single location.
func fuzzyFind(lines, anchor []string) (int, error) {
	if len(anchor) > len(lines) {
		return 0, fmt.Errorf("%w: %s", ErrHunkNotFound, strings.Join(anchor, "\\n"))
	}
	first := -1
	for i := 0; i+len(anchor) <= len(lines); i++ {
		if !matchesAt(lines, anchor, i) {
			continue
		}
		if first == -1 {
			first = i
			continue
		}
		return 0, fmt.Errorf("%w: %s", ErrHunkAmbiguous, strings.Join(anchor, "\\n"))
	}
	if first == -1 {
		return 0, fmt.Errorf("%w: %s", ErrHunkNotFound, strings.Join(anchor, "\\n"))
	}
	return first, nil
}

func matchesAt(lines, anchor []string, start int) bool {
	for j, a := range anchor {
		if strings.TrimSpace(lines[start+j]) != strings.TrimSpace(a) {
			return false
		}
	}
	return true
}
