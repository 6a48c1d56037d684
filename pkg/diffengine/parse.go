// Package diffengine parses the unified-diff dialect the planner submits,
// applies it file by file, and checks each resulting file for syntax
// errors and a narrow set of lint regressions before committing it. It
// composes editor.Editor and fsadapter.FS as siblings rather than having
// either depend on the other, to avoid layering the filesystem beneath
// both the open-file table and the diff engine twice over.
package diffengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sweagent/sweenv/pkg/types"
)

// ErrMalformedDiff is returned when the diff blob cannot be parsed at all.
var ErrMalformedDiff = errors.New("diffengine: malformed diff")

// ErrHallucination is returned when a file block is missing its source or
// target path, mirroring the original environment's hallucination guard:
// a patch with no real file attached can't be applied to anything.
var ErrHallucination = errors.New("diffengine: hallucination: missing source or target file")

// ParseDiff splits a multi-file unified diff blob into one types.FileDiff
// per --- / +++ pair, each carrying its @@ hunks.
func ParseDiff(blob string) ([]types.FileDiff, error) {
	lines := strings.Split(blob, "\n")

	var diffs []types.FileDiff
	var cur *types.FileDiff
	var hunk *types.Hunk
	section := sectionNone

	flushHunk := func() {
		if cur != nil && hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
			hunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			diffs = append(diffs, *cur)
			cur = nil
		}
	}

	for _, raw := range lines {
		switch {
		case strings.HasPrefix(raw, "--- "):
			flushFile()
			cur = &types.FileDiff{SrcFile: strings.TrimSpace(strings.TrimPrefix(raw, "--- "))}
			section = sectionNone
		case strings.HasPrefix(raw, "+++ "):
			if cur == nil {
				return nil, fmt.Errorf("%w: +++ with no preceding ---", ErrMalformedDiff)
			}
			cur.TgtFile = strings.TrimSpace(strings.TrimPrefix(raw, "+++ "))
		case strings.HasPrefix(raw, "@@"):
			if cur == nil {
				return nil, fmt.Errorf("%w: @@ with no preceding --- / +++", ErrMalformedDiff)
			}
			flushHunk()
			hunk = &types.Hunk{}
			section = sectionContextBefore
		case strings.HasPrefix(raw, "-"):
			if hunk == nil {
				return nil, fmt.Errorf("%w: removed line outside a hunk", ErrMalformedDiff)
			}
			hunk.Removed = append(hunk.Removed, strings.TrimPrefix(raw, "-"))
			section = sectionRemoved
		case strings.HasPrefix(raw, "+"):
			if hunk == nil {
				return nil, fmt.Errorf("%w: added line outside a hunk", ErrMalformedDiff)
			}
			hunk.Added = append(hunk.Added, strings.TrimPrefix(raw, "+"))
			section = sectionAdded
		case strings.HasPrefix(raw, " "):
			if hunk == nil {
				continue
			}
			text := strings.TrimPrefix(raw, " ")
			if section == sectionRemoved || section == sectionAdded || section == sectionContextAfter {
				hunk.ContextAfter = append(hunk.ContextAfter, text)
				section = sectionContextAfter
			} else {
				hunk.ContextBefore = append(hunk.ContextBefore, text)
				section = sectionContextBefore
			}
		case strings.TrimSpace(raw) == "":
			// blank lines between file blocks are allowed; inside a hunk
			// they're body text already captured above via " " prefix in
			// practice, so an unprefixed blank here is just separator noise
		}
	}
	flushFile()

	if len(diffs) == 0 {
		return nil, fmt.Errorf("%w: no file headers found", ErrMalformedDiff)
	}

	for _, d := range diffs {
		if d.SrcFile == "" || d.TgtFile == "" {
			return nil, fmt.Errorf("%w: could not apply changes, missing source or target file", ErrHallucination)
		}
	}

	return diffs, nil
}

type hunkSection int

const (
	sectionNone hunkSection = iota
	sectionContextBefore
	sectionRemoved
	sectionAdded
	sectionContextAfter
)
