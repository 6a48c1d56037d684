package symbolindex

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"

	"github.com/sweagent/sweenv/pkg/types"
)

// parseGoFile extracts top-level functions and receiver methods (recorded
// as Receiver.Method) plus type declarations, from one .go file.
func parseGoFile(hostPath, containerPath string) ([]types.FunctionEntry, []types.ClassEntry, error) {
	src, err := os.ReadFile(hostPath)
	if err != nil {
		return nil, nil, err
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, hostPath, src, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}

	lines := strings.Split(string(src), "\n")
	snippet := func(startLine, endLine int) string {
		if startLine < 1 {
			startLine = 1
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}
		if startLine > endLine {
			return ""
		}
		return strings.Join(lines[startLine-1:endLine], "\n")
	}

	var funcs []types.FunctionEntry
	classMembers := map[string][]string{}
	classLines := map[string]int{}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			name := d.Name.Name
			if d.Recv != nil && len(d.Recv.List) > 0 {
				recv := receiverTypeName(d.Recv.List[0].Type)
				if recv != "" {
					name = recv + "." + name
					classMembers[recv] = append(classMembers[recv], d.Name.Name)
				}
			}
			start := fset.Position(d.Pos()).Line
			end := fset.Position(d.End()).Line
			funcs = append(funcs, types.FunctionEntry{
				QualifiedName: name,
				File:          containerPath,
				Line:          start,
				Source:        snippet(start, end),
			})
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if _, ok := ts.Type.(*ast.StructType); !ok {
					continue
				}
				classLines[ts.Name.Name] = fset.Position(ts.Pos()).Line
			}
		}
	}

	var classes []types.ClassEntry
	for name, line := range classLines {
		classes = append(classes, types.ClassEntry{
			Name:    name,
			File:    containerPath,
			Line:    line,
			Source:  snippet(line, line),
			Members: classMembers[name],
		})
	}

	return funcs, classes, nil
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return ""
	}
}
