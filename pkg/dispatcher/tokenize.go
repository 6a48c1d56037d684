// Package dispatcher parses one action line into a verb and its
// arguments, and routes it to the filesystem adapter, editor, symbol
// index, or diff engine, falling back to a raw shell command for
// anything it doesn't recognize. A handful of interactive commands are
// rejected outright because they would block the single shared shell.
package dispatcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// ErrInteractiveCommand is returned when the raw-shell fallback would run
// a command known to block waiting on a TTY.
var ErrInteractiveCommand = errors.New("dispatcher: interactive command rejected")

var blockedCommands = map[string]bool{
	"vim":    true,
	"vi":     true,
	"nano":   true,
	"emacs":  true,
	"python": true, // blocks the shell as a REPL or with a multi-line program; Dispatch lets a one-line run through
	"python3": true,
}

// Tokenize splits one action line into words, honoring quoted strings by
// shell rules, plus a <<<...>>> multi-line literal delimiter used for diff
// blobs and file contents. The heredoc-like <<<...>>> form is extracted
// first so its interior whitespace and quoting are never touched by the
// word splitter. On a line without <<<...>>>, a word wrapped in [...] has
// its brackets stripped; a bracket literal that contains whitespace is
// split into separate words like any unquoted text.
func Tokenize(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}

	if idx := strings.Index(line, "<<<"); idx >= 0 {
		end := strings.Index(line[idx+3:], ">>>")
		if end < 0 {
			return nil, fmt.Errorf("dispatcher: unterminated <<< literal")
		}
		head := line[:idx]
		body := line[idx+3 : idx+3+end]
		tail := line[idx+3+end+3:]

		headWords, err := shellquote.Split(head)
		if err != nil {
			return nil, fmt.Errorf("dispatcher: tokenize: %w", err)
		}
		words := append(headWords, body)
		if strings.TrimSpace(tail) != "" {
			tailWords, err := shellquote.Split(tail)
			if err != nil {
				return nil, fmt.Errorf("dispatcher: tokenize: %w", err)
			}
			words = append(words, tailWords...)
		}
		return words, nil
	}

	words, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: tokenize: %w", err)
	}
	return normalizeBrackets(words), nil
}

// normalizeBrackets strips a single layer of [...] enclosing an argument,
// so planners that bracket a literal (e.g. a line number range) don't leak
// the brackets into the argument value.
func normalizeBrackets(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		if strings.HasPrefix(w, "[") && strings.HasSuffix(w, "]") && len(w) >= 2 {
			out[i] = w[1 : len(w)-1]
		} else {
			out[i] = w
		}
	}
	return out
}

func isBlockedCommand(cmd string) bool {
	return blockedCommands[cmd]
}
