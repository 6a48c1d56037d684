// Package symbolindex builds a per-repo mapping from qualified function and
// class name to their definition sites, by snapshotting the container's
// working tree to a local temp directory and parsing it out of band. The
// index is rebuilt lazily: every lookup re-snapshots the working tree and
// hashes it, and re-parses only when that hash differs from the one
// recorded at the last build.
package symbolindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/types"
)

// Index is an immutable snapshot of one build.
type Index = types.SymbolIndex

// Store owns the lazily-rebuilt index for one session.
type Store struct {
	rt       containerrt.Runtime
	handle   types.ContainerHandle
	repoRoot string

	mu      sync.Mutex
	current *Index
}

// NewStore creates a Store for repoRoot inside the container identified by
// handle.
func NewStore(rt containerrt.Runtime, handle types.ContainerHandle, repoRoot string) *Store {
	return &Store{rt: rt, handle: handle, repoRoot: repoRoot}
}

// Current returns the last-built index without checking for staleness, or
// nil if Ensure has never run.
func (s *Store) Current() *Index {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Ensure snapshots the working tree, and rebuilds the index only if the
// snapshot's content hash differs from the one the current index was
// built from (or no index exists yet).
func (s *Store) Ensure(ctx context.Context) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, hash, err := snapshotAndHash(ctx, s.rt, s.handle, s.repoRoot)
	if err != nil {
		return nil, fmt.Errorf("symbolindex: snapshot: %w", err)
	}
	defer cleanupDir(dir)

	if s.current != nil && s.current.ContentHash == hash {
		metrics.SymbolIndexBuildsTotal.WithLabelValues("skipped").Inc()
		return s.current, nil
	}

	reason := "initial"
	if s.current != nil {
		reason = "stale"
	}

	timer := metrics.NewTimer()
	idx, err := parseTree(dir, s.repoRoot, hash)
	if err != nil {
		return nil, fmt.Errorf("symbolindex: parse: %w", err)
	}
	timer.ObserveDuration(metrics.SymbolIndexBuildDuration)
	metrics.SymbolIndexBuildsTotal.WithLabelValues(reason).Inc()

	s.current = idx
	return idx, nil
}

// Reset forces the next Ensure to rebuild unconditionally, matching the
// spec's "invalidated on reset" rule for the symbol index.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// maxSourceBytes bounds how much serialized source accompanies a lookup
// result, to avoid flooding the planner's context.
const maxSourceBytes = 4000

// FindFunction returns every entry for qname, rebuilding the index first
// if the working tree has changed. Source snippets are dropped once the
// accumulated size would exceed maxSourceBytes.
func (s *Store) FindFunction(ctx context.Context, qname string) ([]types.FunctionEntry, error) {
	idx, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return capSource(idx.Functions[qname]), nil
}

// FindClass returns every entry for name, rebuilding the index first if
// the working tree has changed.
func (s *Store) FindClass(ctx context.Context, name string) ([]types.ClassEntry, error) {
	idx, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	entries := idx.Classes[name]
	total := 0
	out := make([]types.ClassEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		total += len(e.Source)
		if total > maxSourceBytes {
			out[i].Source = ""
		}
	}
	return out, nil
}

func capSource(entries []types.FunctionEntry) []types.FunctionEntry {
	total := 0
	out := make([]types.FunctionEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		total += len(e.Source)
		if total > maxSourceBytes {
			out[i].Source = ""
		}
	}
	return out
}
