// Package taskdataset supplies the task records a session is reset against.
// It is a thin, read-only collaborator: sweenv never writes a task back to
// its source, only reads the next batch to run.
package taskdataset

import (
	"context"

	"github.com/sweagent/sweenv/pkg/types"
)

// Source yields the set of tasks to run. Implementations may read from a
// local file, a remote index, or a live repository, but Load always
// returns the complete set available at call time rather than a stream;
// callers that want pagination wrap a Source rather than the interface
// growing a cursor.
type Source interface {
	Load(ctx context.Context) ([]types.Task, error)
}
