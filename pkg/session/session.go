// Package session sequences one episode's reset → step* → close lifecycle
// over a container-backed sandbox: it owns the container handle, the
// shell bridge, and every component built on top of it (filesystem
// adapter, editor, symbol index, diff engine, dispatcher), and recovers
// from the two failure classes the shell bridge can surface — a timed-out
// command and a fatally broken bridge.
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweagent/sweenv/pkg/containerrt"
	"github.com/sweagent/sweenv/pkg/diffengine"
	"github.com/sweagent/sweenv/pkg/dispatcher"
	"github.com/sweagent/sweenv/pkg/editor"
	"github.com/sweagent/sweenv/pkg/events"
	"github.com/sweagent/sweenv/pkg/fsadapter"
	"github.com/sweagent/sweenv/pkg/health"
	"github.com/sweagent/sweenv/pkg/ledger"
	"github.com/sweagent/sweenv/pkg/log"
	"github.com/sweagent/sweenv/pkg/metrics"
	"github.com/sweagent/sweenv/pkg/shellbridge"
	"github.com/sweagent/sweenv/pkg/symbolindex"
	"github.com/sweagent/sweenv/pkg/types"
)

// Session owns exactly one container and the component set layered on
// top of its shell for the lifetime of one or more reset→step*→close
// episodes. It holds a single mutex over every piece of mutable state, in
// the style of a long-lived worker loop: one lock, no per-component
// locking underneath it.
type Session struct {
	mu sync.Mutex

	id  string
	cfg Config
	rt  containerrt.Runtime

	store  ledger.Store
	broker *events.Broker

	task *types.Task
	cwd  string

	handle     types.ContainerHandle
	bridge     *shellbridge.Bridge
	stdinPipe  io.WriteCloser
	fs         *fsadapter.FS
	ed         *editor.Editor
	idx        *symbolindex.Store
	eng        *diffengine.Engine
	disp       *dispatcher.Dispatcher
	parentPIDs []int

	closed bool
}

// New creates a Session over rt, with store recording steps and broker
// (optional, may be nil) receiving lifecycle events.
func New(cfg Config, rt containerrt.Runtime, store ledger.Store, broker *events.Broker) *Session {
	return &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		rt:     rt,
		store:  store,
		broker: broker,
	}
}

// ID returns the session's identifier, used to scope ledger entries and
// log fields.
func (s *Session) ID() string { return s.id }

func (s *Session) publish(typ events.EventType, msg string, meta map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{ID: s.id, Type: typ, Message: msg, Metadata: meta})
}

// HealthChecker returns an exec-based checker against the session's
// current container, or nil if no container is running.
func (s *Session) HealthChecker() health.Checker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle.ID == "" {
		return nil
	}
	return health.NewExecChecker(s.rt, s.handle, []string{"true"})
}

// Close attempts a clean shell exit, then stops the container. Safe to
// call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	logger := log.WithSessionID(s.id)

	if s.bridge != nil {
		_, _, _ = s.bridge.Communicate(ctx, "exit", 5*time.Second)
	}
	if s.stdinPipe != nil {
		_ = s.stdinPipe.Close()
	}

	if s.handle.ID != "" {
		if err := s.rt.Stop(ctx, s.handle, s.cfg.StopTimeout); err != nil {
			logger.Warn().Err(err).Msg("stop container failed")
		}
	}

	metrics.SessionsActive.Dec()
	s.publish(events.EventSessionClosed, "session closed", nil)
	return nil
}
