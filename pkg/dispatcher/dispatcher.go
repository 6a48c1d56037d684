package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweagent/sweenv/pkg/diffengine"
	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/shellbridge"
	"github.com/sweagent/sweenv/pkg/symbolindex"
)

// submissionFunc is sourced into the shell and invoked by the submit verb.
// It stages every change, unstages the task's test patch from the index
// (so it never leaks into the agent's own submission), and prints the
// staged diff bracketed by the submission sentinels. It writes no
// .gitignore entries: every untracked file that git does not already
// ignore is staged.
const submissionFunc = `__sweenv_submit() {
  cd "$1" || return 1
  git add -A >/dev/null 2>&1
  if [ -f /root/test.patch ]; then
    git apply -R --cached /root/test.patch >/dev/null 2>&1
  fi
  printf '%s' '<<SUBMISSION||'
  git diff --cached
  printf '%s\n' '||SUBMISSION>>'
}
__sweenv_submit`

// Dispatcher routes one parsed Action to its component and returns a
// plain-text observation. It never panics on an unrecognized verb: Parse
// already classified anything unknown as VerbRawShell.
type Dispatcher struct {
	bridge   *shellbridge.Bridge
	fs       *fsadapter.FS
	ed       *editor.Editor
	idx      *symbolindex.Store
	eng      *diffengine.Engine
	repoRoot string
}

// New wires a Dispatcher over an already-constructed component set.
func New(bridge *shellbridge.Bridge, fs *fsadapter.FS, ed *editor.Editor, idx *symbolindex.Store, eng *diffengine.Engine, repoRoot string) *Dispatcher {
	return &Dispatcher{bridge: bridge, fs: fs, ed: ed, idx: idx, eng: eng, repoRoot: repoRoot}
}

// Dispatch parses and routes one action line. Any error from the
// underlying component is turned into a descriptive observation string
// rather than propagated, per the dispatcher's "catch below, continue the
// session" contract; only a bridge error (timeout/fatal) from a raw shell
// command, get_cwd or submit is returned as an error so the session can
// apply its own recovery.
func (d *Dispatcher) Dispatch(ctx context.Context, cwd string, line string) (string, error) {
	action, err := Parse(line)
	if err != nil {
		return fmt.Sprintf("error: %s", err), nil
	}

	metrics.ActionsTotal.WithLabelValues(string(action.Verb)).Inc()

	switch action.Verb {
	case VerbNoOp:
		return "No Action Taken", nil

	case VerbOpenFile:
		return d.route1(ctx, cwd, action, func(p string) (string, error) {
			rec, err := d.ed.OpenFile(ctx, p)
			if err != nil {
				return "", err
			}
			return rec.Contents, nil
		})

	case VerbCloseFile:
		return d.route1(ctx, cwd, action, func(p string) (string, error) {
			d.ed.CloseFile(p)
			return fmt.Sprintf("closed %s", p), nil
		})

	case VerbCreateFile:
		if len(action.Args) < 1 {
			return "error: create_file requires a path", nil
		}
		p := d.ed.Normalize(cwd, action.Args[0])
		content := ""
		if len(action.Args) > 1 {
			content = action.Args[1]
		}
		rec, err := d.ed.CreateFile(ctx, p, content)
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return rec.Contents, nil

	case VerbDeleteFile:
		return d.route1(ctx, cwd, action, func(p string) (string, error) {
			if err := d.ed.DeleteFile(ctx, p); err != nil {
				return "", err
			}
			return fmt.Sprintf("deleted %s", p), nil
		})

	case VerbScrollUp:
		return d.route1(ctx, cwd, action, func(p string) (string, error) {
			page, err := d.ed.ScrollUp(p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("page %d", page), nil
		})

	case VerbScrollDown:
		return d.route1(ctx, cwd, action, func(p string) (string, error) {
			page, err := d.ed.ScrollDown(p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("page %d", page), nil
		})

	case VerbScrollToLine:
		if len(action.Args) < 2 {
			return "error: scroll_to_line requires a path and a line number", nil
		}
		n, err := strconv.Atoi(action.Args[1])
		if err != nil {
			return fmt.Sprintf("error: invalid line number %q", action.Args[1]), nil
		}
		p := d.ed.Normalize(cwd, action.Args[0])
		page, err := d.ed.ScrollToLine(p, n)
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return fmt.Sprintf("page %d", page), nil

	case VerbSearchFile:
		if len(action.Args) < 2 {
			return "error: search_file requires a term and a path", nil
		}
		p := d.ed.Normalize(cwd, action.Args[1])
		windows, err := d.ed.SearchFile(p, action.Args[0])
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return formatWindows(windows), nil

	case VerbSearchDir:
		term := ""
		dir := cwd
		if len(action.Args) > 0 {
			term = action.Args[0]
		}
		if len(action.Args) > 1 {
			dir = d.ed.Normalize(cwd, action.Args[1])
		}
		matches, err := d.fs.GrepInDir(ctx, term, dir)
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return formatGrepMatches(matches), nil

	case VerbFindFile:
		if len(action.Args) < 1 {
			return "error: find_file requires a name", nil
		}
		paths, err := d.fs.FindByName(ctx, d.repoRoot, action.Args[0])
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		if len(paths) == 0 {
			return "no matches found", nil
		}
		return strings.Join(paths, "\n"), nil

	case VerbFindFunction:
		if len(action.Args) < 1 {
			return "error: find_function requires a qualified name", nil
		}
		entries, err := d.idx.FindFunction(ctx, action.Args[0])
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return formatFunctionEntries(entries), nil

	case VerbFindClass:
		if len(action.Args) < 1 {
			return "error: find_class requires a name", nil
		}
		entries, err := d.idx.FindClass(ctx, action.Args[0])
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return formatClassEntries(entries), nil

	case VerbListDirsRecursive:
		p := d.repoRoot
		if len(action.Args) > 0 {
			p = d.ed.Normalize(cwd, action.Args[0])
		}
		tree, err := d.fs.ListTree(ctx, p)
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		return formatTree(tree, 0), nil

	case VerbGetCWD:
		out, _, err := d.bridge.Communicate(ctx, "pwd", shellbridge.DefaultTimeout)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil

	case VerbEditFile:
		if len(action.Args) < 1 {
			return "error: edit_file requires a diff blob", nil
		}
		diffs, err := diffengine.ParseDiff(action.Args[0])
		if err != nil {
			return fmt.Sprintf("error: %s", err), nil
		}
		result := d.eng.Apply(ctx, cwd, diffs)
		return formatDiffResult(result), nil

	case VerbSubmit:
		cmd := fmt.Sprintf("%s %s", submissionFunc, shQuote(d.repoRoot))
		out, _, err := d.bridge.Communicate(ctx, cmd, shellbridge.LongTimeout)
		if err != nil {
			return "", err
		}
		return out, nil

	case VerbRawShell:
		if len(action.Args) > 0 && isBlockedCommand(action.Args[0]) {
			// python blocks the shell only as a REPL (no arguments) or with a
			// multi-line program; a one-line script or -c run passes through.
			isPython := action.Args[0] == "python" || action.Args[0] == "python3"
			if !isPython || len(action.Args) == 1 || strings.Contains(action.Raw, "\n") {
				return fmt.Sprintf("error: %s is an interactive command and is not supported", action.Args[0]), nil
			}
		}
		out, code, err := d.bridge.Communicate(ctx, action.Raw, shellbridge.DefaultTimeout)
		if err != nil {
			return "", err
		}
		if code != 0 {
			return fmt.Sprintf("%s\n[exit code %d]", out, code), nil
		}
		return out, nil
	}

	return fmt.Sprintf("error: unrecognized verb %q", action.Verb), nil
}

func (d *Dispatcher) route1(ctx context.Context, cwd string, action Action, fn func(p string) (string, error)) (string, error) {
	if len(action.Args) < 1 {
		return fmt.Sprintf("error: %s requires a path", action.Verb), nil
	}
	p := d.ed.Normalize(cwd, action.Args[0])
	out, err := fn(p)
	if err != nil {
		return fmt.Sprintf("error: %s", err), nil
	}
	return out, nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
