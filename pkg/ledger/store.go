// Package ledger is the session transcript store: a sequence of per-step
// action/observation/return-code records persisted across process restarts
// so a driver can resume or audit a run. It is a narrow adaptation of the
// teacher's cluster state store down to the single table a session needs.
package ledger

import "time"

// Step is one recorded action/observation pair in a session's transcript.
type Step struct {
	Seq         uint64
	SessionID   string
	Action      string
	Observation string
	ReturnCode  int
	ExitStatus  string
	Timestamp   time.Time
}

// Store persists a session's step transcript.
type Store interface {
	// RecordStep appends a step to sessionID's transcript. Seq is assigned
	// by the store and returned.
	RecordStep(sessionID string, step Step) (uint64, error)

	// ListSteps returns every recorded step for sessionID in sequence order.
	ListSteps(sessionID string) ([]Step, error)

	// Close releases the store's underlying resources.
	Close() error
}
