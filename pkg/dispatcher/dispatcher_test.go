package dispatcher_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sweagent/sweenv/pkg/dispatcher"
)

func TestTokenizeRespectsQuotesAndBrackets(t *testing.T) {
	words, err := dispatcher.Tokenize(`open_file "a file.py"`)
	require.NoError(t, err)
	require.Equal(t, []string{"open_file", "a file.py"}, words)

	words, err = dispatcher.Tokenize(`scroll_to_line a.py [42]`)
	require.NoError(t, err)
	require.Equal(t, []string{"scroll_to_line", "a.py", "42"}, words)
}

func TestTokenizeMultilineLiteral(t *testing.T) {
	words, err := dispatcher.Tokenize("edit_file <<<line one\nline two>>>")
	require.NoError(t, err)
	require.Equal(t, []string{"edit_file", "line one\nline two"}, words)
}

func TestParseClassifiesRegisteredVerbs(t *testing.T) {
	action, err := dispatcher.Parse("open_file /repo/a.py")
	require.NoError(t, err)
	require.Equal(t, dispatcher.VerbOpenFile, action.Verb)
	require.Equal(t, []string{"/repo/a.py"}, action.Args)
}

func TestParseFallsBackToRawShell(t *testing.T) {
	action, err := dispatcher.Parse("ls -la /repo")
	require.NoError(t, err)
	require.Equal(t, dispatcher.VerbRawShell, action.Verb)
}

func TestParseEmptyLineIsNoOp(t *testing.T) {
	action, err := dispatcher.Parse("   ")
	require.NoError(t, err)
	require.Equal(t, dispatcher.VerbNoOp, action.Verb)
}
