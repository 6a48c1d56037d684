package diffengine

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// lintDelta reports lint regressions introduced by going from old to new
// contents. It is narrowed to two checks go/ast can answer cheaply:
// imports that are no longer referenced, and identifiers qualified with a
// package name that was never imported. Only the one file is parsed, so a
// qualifier declared in another file of the same package is reported too.
// Anything else (style, unused locals, …) is out of scope; non-Go files get
// no lint pass at all.
func lintDelta(path, oldContents, newContents string) []string {
	if !strings.HasSuffix(path, ".go") {
		return nil
	}

	oldIssues := lintGo(path, oldContents)
	newIssues := lintGo(path, newContents)

	oldSet := make(map[string]bool, len(oldIssues))
	for _, i := range oldIssues {
		oldSet[i] = true
	}

	var delta []string
	for _, i := range newIssues {
		if !oldSet[i] {
			delta = append(delta, i)
		}
	}
	return delta
}

func lintGo(path, contents string) []string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, contents, parser.ParseComments)
	if err != nil {
		return nil
	}

	imported := map[string]string{} // local name -> path
	for _, imp := range file.Imports {
		name := importLocalName(imp)
		if name != "" && name != "_" {
			imported[name] = imp.Path.Value
		}
	}

	used := map[string]bool{}
	unresolved := map[string]bool{} // qualifiers the parser resolved to no local or file-level declaration
	ast.Inspect(file, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if ident, ok := sel.X.(*ast.Ident); ok {
			used[ident.Name] = true
			if ident.Obj == nil {
				unresolved[ident.Name] = true
			}
		}
		return true
	})

	var issues []string
	for name, path := range imported {
		if !used[name] {
			issues = append(issues, fmt.Sprintf("unused import %s", path))
		}
	}
	for name := range unresolved {
		if _, ok := imported[name]; !ok {
			issues = append(issues, fmt.Sprintf("undeclared package qualifier %s", name))
		}
	}
	return issues
}

func importLocalName(imp *ast.ImportSpec) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	raw := strings.Trim(imp.Path.Value, `"`)
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}
