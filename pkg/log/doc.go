// Package log wraps zerolog with the small set of helpers sweenv actually
// uses: a global logger configured once via Init, and component/task-scoped
// child loggers so a shell-bridge timeout and a diff-engine rejection show up
// with distinguishable fields in the same stream.
package log
