package shellbridge

import "errors"

// ErrShellFatal marks an error that leaves the shell bridge unusable: the
// caller must reset the container rather than retry the command.
var ErrShellFatal = errors.New("shell bridge: fatal")

// ErrInterruptFailed marks a failed interrupt health-check round trip.
var ErrInterruptFailed = errors.New("shell bridge: interrupt health check failed")

// ErrShellTimeout marks a command that hit its timeout; the shell itself
// is still usable after child processes are reaped, so the caller should
// interrupt and continue rather than reset the container.
var ErrShellTimeout = errors.New("shell bridge: command timed out")
