package symbolindex

import (
	"os"
	"regexp"
	"strings"

	"github.com/sweagent/sweenv/pkg/types"
)

var (
	pyDefRe   = regexp.MustCompile(`^(\s*)def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	pyClassRe = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[:(]`)
)

// parsePythonFile is a line-oriented heuristic: it does not build an AST,
// it tracks indentation to find where a def/class block ends and which
// class (if any) encloses a def; a def nested inside a method is recorded
// as a member of that class too. Good enough for the
// lookups symbol index serves; a real parse would need a Python frontend
// this module has no reason to carry.
func parsePythonFile(hostPath, containerPath string) ([]types.FunctionEntry, []types.ClassEntry, error) {
	raw, err := os.ReadFile(hostPath)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(string(raw), "\n")

	type openClass struct {
		name    string
		indent  int
		startLn int
		members []string
	}
	var classStack []openClass
	var funcs []types.FunctionEntry
	var classes []types.ClassEntry

	closeClassesAbove := func(indent int) {
		for len(classStack) > 0 && indent <= classStack[len(classStack)-1].indent {
			c := classStack[len(classStack)-1]
			classStack = classStack[:len(classStack)-1]
			end := blockEnd(lines, c.startLn, c.indent)
			classes = append(classes, types.ClassEntry{
				Name:    c.name,
				File:    containerPath,
				Line:    c.startLn + 1,
				Source:  strings.Join(lines[c.startLn:end], "\n"),
				Members: c.members,
			})
		}
	}

	for i, line := range lines {
		indent := indentOf(line)

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			closeClassesAbove(indent)
			classStack = append(classStack, openClass{name: m[2], indent: indent, startLn: i})
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			closeClassesAbove(indent)
			name := m[2]
			if len(classStack) > 0 {
				parent := &classStack[len(classStack)-1]
				parent.members = append(parent.members, name)
				name = parent.name + "." + name
			}
			end := blockEnd(lines, i, indent)
			funcs = append(funcs, types.FunctionEntry{
				QualifiedName: name,
				File:          containerPath,
				Line:          i + 1,
				Source:        strings.Join(lines[i:end], "\n"),
			})
		}
	}
	closeClassesAbove(0)

	return funcs, classes, nil
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

// blockEnd scans forward from a def/class header at headerIndent, returning
// the exclusive line index where a less-or-equally-indented, non-blank line
// next appears.
func blockEnd(lines []string, header, headerIndent int) int {
	for i := header + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentOf(lines[i]) <= headerIndent {
			return i
		}
	}
	return len(lines)
}
