// Package health tracks consecutive check results so a caller can debounce
// a single flaky probe into a stable healthy/unhealthy verdict. ExecChecker
// is the only Checker implementation: it runs a command in the session's
// container through a containerrt.Runtime.
package health
