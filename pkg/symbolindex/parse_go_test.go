package symbolindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/types"
)

func TestParseGoFileExtractsFunctionsAndClasses(t *testing.T) {
	src := `package widget

type Widget struct {
	Name string
}

func (w *Widget) Render() string {
	return w.Name
}

func New() *Widget {
	return &Widget{}
}
`
	dir := t.TempDir()
	hostPath := filepath.Join(dir, "widget.go")
	require.NoError(t, os.WriteFile(hostPath, []byte(src), 0o644))

	funcs, classes, err := parseGoFile(hostPath, "/repo/widget.go")
	require.NoError(t, err)

	wantFuncs := []types.FunctionEntry{
		{
			QualifiedName: "Widget.Render",
			File:          "/repo/widget.go",
			Line:          7,
			Source:        "func (w *Widget) Render() string {\n\treturn w.Name\n}",
		},
		{
			QualifiedName: "New",
			File:          "/repo/widget.go",
			Line:          11,
			Source:        "func New() *Widget {\n\treturn &Widget{}\n}",
		},
	}
	if diff := cmp.Diff(wantFuncs, funcs); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}

	wantClasses := []types.ClassEntry{
		{
			Name:    "Widget",
			File:    "/repo/widget.go",
			Line:    3,
			Source:  "type Widget struct {",
			Members: []string{"Render"},
		},
	}
	if diff := cmp.Diff(wantClasses, classes); diff != "" {
		t.Errorf("classes mismatch (-want +got):\n%s", diff)
	}
}
