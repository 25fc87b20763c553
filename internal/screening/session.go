package screening

import (
	"context"
	"sync"

	"github.com/mikey/llm-call-screener/internal/core"
)

// entry is the orchestrator's private state for one live call. The turn
// channel admits one event at a time; mu guards the session for snapshots.
type entry struct {
	sessionID     string
	transcription core.ProviderConfig

	turn   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	session    *core.CallSession
	generation uint64
	abandoned  bool
}

func newEntry(session *core.CallSession) *entry {
	ctx, cancel := context.WithCancel(context.Background())
	return &entry{
		sessionID: session.ID,
		turn:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		session:   session,
	}
}

func (e *entry) id() string {
	return e.sessionID
}

// acquire waits for the session's turn. It fails if the caller gives up or
// the call is abandoned first. The returned generation tags the event.
func (e *entry) acquire(ctx context.Context) (uint64, error) {
	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.ctx.Done():
		return 0, e.closedErr()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.abandoned:
		<-e.turn
		return 0, ErrSessionAbandoned
	case e.session.State == core.StateResolved:
		<-e.turn
		return 0, ErrSessionNotFound
	}
	return e.generation, nil
}

// closedErr explains why a finished call no longer takes events
func (e *entry) closedErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State == core.StateResolved {
		return ErrSessionNotFound
	}
	return ErrSessionAbandoned
}

func (e *entry) release() {
	<-e.turn
}

// view runs fn against the live session
func (e *entry) view(fn func(s *core.CallSession)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

// commit applies fn only if the session has not moved on since gen was taken
func (e *entry) commit(gen uint64, fn func(s *core.CallSession)) (core.CallSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.abandoned || e.generation != gen {
		return core.CallSession{}, ErrSessionAbandoned
	}
	fn(e.session)
	return e.session.Clone(), nil
}

// check fails with InvalidTransitionError unless ok holds for the session
func (e *entry) check(event string, ok func(s *core.CallSession) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok(e.session) {
		return &InvalidTransitionError{SessionID: e.sessionID, State: e.session.State, Event: event}
	}
	return nil
}

func (e *entry) snapshot() core.CallSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

// abandon invalidates every in-flight event
func (e *entry) abandon() core.CallSession {
	e.mu.Lock()
	e.abandoned = true
	e.generation++
	snap := e.session.Clone()
	e.mu.Unlock()

	e.cancel()
	return snap
}

// callContext derives a context that ends with either the request or the call
func (e *entry) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}
