package types

import "time"

// Task is the immutable per-episode bundle that drives one reset → steps* →
// submit run. It is owned by the session for the lifetime of one episode and
// referenced read-only by every other component.
type Task struct {
	InstanceID       string
	RepoSlug         string
	BaseCommit       string
	ProblemStatement string
	TestPatch        string
	Version          string

	// EnvActivationCommand, if set, is sourced inside the container during
	// reset before any tool commands run (e.g. "source /opt/venv/bin/activate").
	EnvActivationCommand string
}

// ContainerHandle identifies a running sandbox instance. Its zero value
// never refers to a live container.
type ContainerHandle struct {
	ID string
}

// OpenFile is the editor's record of one file currently held open.
// Invariants: AbsolutePath starts with the task's repo root; Contents is the
// last value either read from disk or written by the editor; Page*PageSize
// never exceeds the file's line count after a mutation that changes it.
type OpenFile struct {
	AbsolutePath string
	Contents     string
	Page         int
}

// Editor is the open-file table keyed by absolute path. It is a plain map
// rather than a struct with methods so the editor package can guard mutation
// through its own receiver while tests can still construct fixtures inline.
type Editor map[string]*OpenFile

// SymbolIndex is a snapshot of one repo tree's function and class
// definitions, plus the content hash it was built from. A fresh hash that
// doesn't match ContentHash is the signal to rebuild rather than reuse.
type SymbolIndex struct {
	ContentHash string
	Functions   map[string][]FunctionEntry
	Classes     map[string][]ClassEntry
}

// FunctionEntry is one definition site for a qualified function name.
type FunctionEntry struct {
	QualifiedName string
	File          string
	Line          int
	Source        string
}

// ClassEntry is one definition site for a qualified class name.
type ClassEntry struct {
	Name    string
	File    string
	Line    int
	Source  string
	Members []string
}

// Hunk is one `@@ ... @@` block of a diff: the atomic unit of change
// location, though not of commit (a file is the commit unit).
type Hunk struct {
	ContextBefore []string
	Removed       []string
	Added         []string
	ContextAfter  []string
}

// FileDiff is one `--- src` / `+++ tgt` block plus its hunks, as supplied by
// the planner before path resolution.
type FileDiff struct {
	SrcFile string
	TgtFile string
	Hunks   []Hunk
}

// FileSuccess is one file whose diff hunks all applied.
type FileSuccess struct {
	Path        string
	NewContents string
	OldContents string
	LintDelta   []string
}

// FileFailure is one file whose diff could not be applied; the file on disk
// is left untouched.
type FileFailure struct {
	Path        string
	Reason      string
	OldContents string
}

// DiffResult is the outcome of applying a multi-file diff blob. Success and
// failure are tracked per file, never per hunk, because partial hunk
// application within one file is forbidden.
type DiffResult struct {
	Success []FileSuccess
	Fail    []FileFailure
}

// ExitStatus is attached to the final step's info payload.
type ExitStatus string

const (
	ExitStatusSkipped       ExitStatus = "skipped"
	ExitStatusSubmitted     ExitStatus = "submitted"
	ExitStatusSubmittedExit ExitStatus = "submitted (exit_*)"
	ExitStatusEarlyExit     ExitStatus = "early_exit"
)

// StepResult is what the dispatcher/session returns for one action.
type StepResult struct {
	Observation string
	Done        bool
	ExitStatus  ExitStatus
	ReturnCode  int
	Patch       string
	Timestamp   time.Time
}
