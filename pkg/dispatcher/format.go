package dispatcher

import (
	"fmt"
	"strings"

	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/types"
)

func formatWindows(windows []editor.Window) string {
	if len(windows) == 0 {
		return "no matches found"
	}
	var b strings.Builder
	for _, w := range windows {
		fmt.Fprintf(&b, "--- line %d ---\n", w.LineNumber)
		b.WriteString(strings.Join(w.Lines, "\n"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGrepMatches(matches []fsadapter.GrepMatch) string {
	if len(matches) == 0 {
		return "no matches found"
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s: %d\n", m.Path, m.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFunctionEntries(entries []types.FunctionEntry) string {
	if len(entries) == 0 {
		return "no matches found"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s (%s:%d)\n", e.QualifiedName, e.File, e.Line)
		if e.Source != "" {
			b.WriteString(e.Source)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatClassEntries(entries []types.ClassEntry) string {
	if len(entries) == 0 {
		return "no matches found"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s (%s:%d) members: %s\n", e.Name, e.File, e.Line, strings.Join(e.Members, ", "))
		if e.Source != "" {
			b.WriteString(e.Source)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTree(nodes []fsadapter.TreeNode, depth int) string {
	var b strings.Builder
	writeTree(&b, nodes, depth)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, nodes []fsadapter.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		suffix := ""
		if n.IsDir {
			suffix = "/"
		}
		fmt.Fprintf(b, "%s%s%s\n", indent, n.Name, suffix)
		if n.IsDir && len(n.Children) > 0 {
			writeTree(b, n.Children, depth+1)
		}
	}
}

func formatDiffResult(result types.DiffResult) string {
	var b strings.Builder
	for _, s := range result.Success {
		fmt.Fprintf(&b, "applied: %s\n", s.Path)
		if len(s.LintDelta) > 0 {
			fmt.Fprintf(&b, "  new lint issues: %s\n", strings.Join(s.LintDelta, "; "))
		}
	}
	for _, f := range result.Fail {
		fmt.Fprintf(&b, "failed: %s (%s)\n", f.Path, f.Reason)
	}
	if b.Len() == 0 {
		return "no changes applied"
	}
	return strings.TrimRight(b.String(), "\n")
}
