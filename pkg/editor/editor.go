// Package editor maintains the in-memory open-file table layered on top of
// the sandboxed filesystem: paging, refresh-from-disk, and search over
// whichever files the agent currently has open.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/types"
)

// PageSize is the number of lines shown per page of an open file.
const PageSize = 200

// searchWindows/searchContext bound search_file's result size.
const (
	searchWindows = 10
	searchContext = 10
)

var (
	ErrAlreadyOpen  = errors.New("editor: file already open")
	ErrNotOpen      = errors.New("editor: file not open")
	ErrAlreadyExist = errors.New("editor: file already exists")
)

// Editor wraps an open-file table over an fsadapter.FS. It never talks to
// the shell bridge directly, and the diff engine composes it rather than
// the other way around, to avoid the cyclic dependency called out in the
// design notes.
type Editor struct {
	repoRoot string
	fs       *fsadapter.FS
	files    types.Editor
}

// New creates an Editor rooted at repoRoot.
func New(repoRoot string, fs *fsadapter.FS) *Editor {
	return &Editor{repoRoot: repoRoot, fs: fs, files: make(types.Editor)}
}

// Normalize resolves p against the editor's repo root and cwd.
func (e *Editor) Normalize(cwd, p string) string {
	return Normalize(e.repoRoot, cwd, p)
}

// OpenPaths returns every currently open path. Used by tests asserting the
// keyset invariant; order is unspecified.
func (e *Editor) OpenPaths() []string {
	paths := make([]string, 0, len(e.files))
	for p := range e.files {
		paths = append(paths, p)
	}
	return paths
}

// IsOpen reports whether p is currently open.
func (e *Editor) IsOpen(p string) bool {
	_, ok := e.files[p]
	return ok
}

// OpenFile reads p via fs and inserts an open record at page 0. Fails if p
// is already open or missing.
func (e *Editor) OpenFile(ctx context.Context, p string) (*types.OpenFile, error) {
	if e.IsOpen(p) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, p)
	}
	contents, err := e.fs.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	rec := &types.OpenFile{AbsolutePath: p, Contents: contents, Page: 0}
	e.files[p] = rec
	return rec, nil
}

// CloseFile removes p's record. Silently succeeds if not open.
func (e *Editor) CloseFile(p string) {
	delete(e.files, p)
}

// CreateFile writes content to a new path p and opens it. Fails if p
// already exists.
func (e *Editor) CreateFile(ctx context.Context, p, content string) (*types.OpenFile, error) {
	exists, err := e.fs.Exists(ctx, p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExist, p)
	}
	if err := e.fs.Write(ctx, p, content); err != nil {
		return nil, err
	}
	rec := &types.OpenFile{AbsolutePath: p, Contents: content, Page: 0}
	e.files[p] = rec
	return rec, nil
}

// DeleteFile requires p to exist, removes it via fs, and drops its open
// record if present.
func (e *Editor) DeleteFile(ctx context.Context, p string) error {
	exists, err := e.fs.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, p)
	}
	if err := e.fs.Delete(ctx, p); err != nil {
		return err
	}
	delete(e.files, p)
	return nil
}

// WriteFile overwrites an existing p via fs and refreshes its open record
// if present. Requires p to already exist; use CreateFile for new paths.
func (e *Editor) WriteFile(ctx context.Context, p, content string) error {
	exists, err := e.fs.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, p)
	}
	if err := e.fs.Write(ctx, p, content); err != nil {
		return err
	}
	if rec, ok := e.files[p]; ok {
		rec.Contents = content
		if top := maxPage(content); rec.Page > top {
			rec.Page = top
		}
	}
	return nil
}

func lineCount(contents string) int {
	if contents == "" {
		return 0
	}
	return strings.Count(contents, "\n") + 1
}

func maxPage(contents string) int {
	return lineCount(contents) / PageSize
}

// ScrollUp moves p's page back by one, clamped at 0.
func (e *Editor) ScrollUp(p string) (int, error) {
	rec, ok := e.files[p]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, p)
	}
	if rec.Page > 0 {
		rec.Page--
	}
	return rec.Page, nil
}

// ScrollDown moves p's page forward by one, clamped at the last page.
func (e *Editor) ScrollDown(p string) (int, error) {
	rec, ok := e.files[p]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, p)
	}
	if rec.Page < maxPage(rec.Contents) {
		rec.Page++
	}
	return rec.Page, nil
}

// ScrollToLine maps the 1-indexed line n to its page and jumps there.
func (e *Editor) ScrollToLine(p string, n int) (int, error) {
	rec, ok := e.files[p]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, p)
	}
	if n < 1 {
		n = 1
	}
	page := (n - 1) / PageSize
	top := maxPage(rec.Contents)
	if page > top {
		page = top
	}
	if page < 0 {
		page = 0
	}
	rec.Page = page
	return rec.Page, nil
}

// Refresh re-reads every open file from disk, per the canonical rule that
// disk is authoritative and the editor is refreshed on every mutating call
// and on explicit refresh.
func (e *Editor) Refresh(ctx context.Context) error {
	for p, rec := range e.files {
		contents, err := e.fs.Read(ctx, p)
		if err != nil {
			return err
		}
		rec.Contents = contents
		top := maxPage(contents)
		if rec.Page > top {
			rec.Page = top
		}
	}
	return nil
}

// Window is one match window returned by SearchFile.
type Window struct {
	LineNumber int
	Lines      []string
}

// SearchFile returns up to searchWindows windows of context around each
// match of term in p's open contents.
func (e *Editor) SearchFile(p, term string) ([]Window, error) {
	rec, ok := e.files[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, p)
	}

	lines := strings.Split(rec.Contents, "\n")
	var windows []Window
	for i, line := range lines {
		if len(windows) >= searchWindows {
			break
		}
		if !strings.Contains(line, term) {
			continue
		}
		start := i - searchContext
		if start < 0 {
			start = 0
		}
		end := i + searchContext + 1
		if end > len(lines) {
			end = len(lines)
		}
		windows = append(windows, Window{LineNumber: i + 1, Lines: append([]string(nil), lines[start:end]...)})
	}
	return windows, nil
}
