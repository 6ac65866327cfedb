// Package registry implements the Session Registry: per-session
// mutable state behind a synchronization boundary, modeled on the
// deep-copy-on-read session stores seen across the example pack
// (breakpoints, log-points, watches, paused threads, the currently
// installed pattern set, pid/status, and a writer-task handle).
package registry

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"strobe/internal/logging"
	"strobe/internal/tracer"
	"strobe/internal/types"
)

// sessionState holds one session's mutable collections behind its own
// mutex, so sessions never contend with each other — only the top
// level map lookup is shared.
type sessionState struct {
	mu sync.Mutex

	pid    int
	status types.SessionStatus

	breakpoints map[string]*types.Breakpoint
	logpoints   map[string]*types.LogPoint
	watches     []types.Watch
	paused      map[string]*types.PauseRecord // thread-id -> record
	patterns    map[string]struct{}

	// cancelTasks and tasks together are the per-session task group:
	// the writer task and the stuck-sampler task run under the same
	// errgroup-derived context, so a single cancelTasks() stops both
	// and tasks.Wait() joins both within StopSession's teardown.
	cancelTasks context.CancelFunc
	tasks       *errgroup.Group
}

func newSessionState(pid int) *sessionState {
	return &sessionState{
		pid:         pid,
		status:      types.SessionStatusRunning,
		breakpoints: map[string]*types.Breakpoint{},
		logpoints:   map[string]*types.LogPoint{},
		paused:      map[string]*types.PauseRecord{},
		patterns:    map[string]struct{}{},
	}
}

// Registry is the Session Registry. The Runner owns the Tracer
// singleton and passes it in; the Registry never constructs its own
// tracer, matching the "treat the tracer as a singleton" design note.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState
	tracer   tracer.Client
	log      logging.Logger
}

// New constructs a Registry bound to the given tracer singleton.
func New(t tracer.Client, log logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{sessions: map[string]*sessionState{}, tracer: t, log: log}
}

func (r *Registry) get(sessionID string) (*sessionState, error) {
	r.mu.RLock()
	st, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewError("registry", types.KindSessionNotFound, fmt.Errorf("session %q", sessionID))
	}
	return st, nil
}

// CreateSession registers a session's in-memory state. The caller is
// responsible for the Event Store row; the Registry only tracks the
// mutable control-plane collections.
func (r *Registry) CreateSession(sessionID string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = newSessionState(pid)
}

// SpawnWithTracer spawns command under the tracer, optionally deferring
// resume so hooks can be installed before main() runs, and registers
// the resulting pid against sessionID.
func (r *Registry) SpawnWithTracer(ctx context.Context, sessionID, command string, args, env []string, cwd string, deferResume bool) (int, error) {
	pid, err := r.tracer.Spawn(ctx, command, args, env, cwd, deferResume)
	if err != nil {
		return 0, types.NewError("SpawnWithTracer", types.KindTracerError, err)
	}
	r.CreateSession(sessionID, pid)
	return pid, nil
}

// ResumeProcess releases a deferred spawn.
func (r *Registry) ResumeProcess(ctx context.Context, pid int) error {
	if err := r.tracer.Resume(ctx, pid); err != nil {
		return types.NewError("ResumeProcess", types.KindTracerError, err)
	}
	return nil
}

// AttachTasks records the shared cancel function and errgroup running
// a session's writer task and stuck-sampler task, so StopSession can
// cancel both with one call and wait for them to return (or for its
// ctx to end).
func (r *Registry) AttachTasks(sessionID string, cancel context.CancelFunc, group *errgroup.Group) error {
	st, err := r.get(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cancelTasks = cancel
	st.tasks = group
	return nil
}

// SetBreakpoint installs a breakpoint via the tracer and records it.
func (r *Registry) SetBreakpoint(ctx context.Context, sessionID string, bp types.Breakpoint) (types.Breakpoint, error) {
	st, err := r.get(sessionID)
	if err != nil {
		return types.Breakpoint{}, err
	}
	addr, err := r.tracer.SetBreakpoint(ctx, sessionID, bp.Location, bp.Condition, bp.TargetHits)
	if err != nil {
		return types.Breakpoint{}, types.NewError("SetBreakpoint", types.KindTracerError, err)
	}
	bp.Address = addr
	st.mu.Lock()
	defer st.mu.Unlock()
	st.breakpoints[bp.ID] = &bp
	return bp, nil
}

// RemoveBreakpoint removes a previously installed breakpoint.
func (r *Registry) RemoveBreakpoint(ctx context.Context, sessionID, id string) error {
	st, err := r.get(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.breakpoints[id]; !ok {
		return nil
	}
	delete(st.breakpoints, id)
	return r.tracer.RemoveBreakpoint(ctx, sessionID, id)
}

// SetLogPoint installs a log-point via the tracer and records it.
func (r *Registry) SetLogPoint(ctx context.Context, sessionID string, lp types.LogPoint) (types.LogPoint, error) {
	st, err := r.get(sessionID)
	if err != nil {
		return types.LogPoint{}, err
	}
	addr, err := r.tracer.SetLogPoint(ctx, sessionID, lp.Location, lp.Message, lp.Condition)
	if err != nil {
		return types.LogPoint{}, types.NewError("SetLogPoint", types.KindTracerError, err)
	}
	lp.Address = addr
	st.mu.Lock()
	defer st.mu.Unlock()
	st.logpoints[lp.ID] = &lp
	return lp, nil
}

// RemoveLogPoint removes a previously installed log-point.
func (r *Registry) RemoveLogPoint(ctx context.Context, sessionID, id string) error {
	st, err := r.get(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.logpoints[id]; !ok {
		return nil
	}
	delete(st.logpoints, id)
	return r.tracer.RemoveLogPoint(ctx, sessionID, id)
}

// GetBreakpoints returns a snapshot slice of the session's breakpoints.
func (r *Registry) GetBreakpoints(sessionID string) ([]types.Breakpoint, error) {
	st, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]types.Breakpoint, 0, len(st.breakpoints))
	for _, bp := range st.breakpoints {
		out = append(out, *bp)
	}
	return out, nil
}

// GetLogPoints returns a snapshot slice of the session's log-points.
func (r *Registry) GetLogPoints(sessionID string) ([]types.LogPoint, error) {
	st, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]types.LogPoint, 0, len(st.logpoints))
	for _, lp := range st.logpoints {
		out = append(out, *lp)
	}
	return out, nil
}

// GetAllPausedThreads returns the set of currently paused thread ids
// mapped to the breakpoint that paused them.
func (r *Registry) GetAllPausedThreads(sessionID string) (map[string]string, error) {
	st, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]string, len(st.paused))
	for tid, rec := range st.paused {
		out[tid] = rec.BreakpointID
	}
	return out, nil
}

// RecordPause registers a paused thread, called by the writer task
// when a Pause event arrives from the tracer.
func (r *Registry) RecordPause(sessionID, threadID, breakpointID string) error {
	st, err := r.get(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.paused[threadID] = types.NewPauseRecord(threadID, breakpointID)
	return nil
}

// ContinueThread releases the mailbox of the paused thread threadID.
// Several threads of a session may be paused at once; only threadID is
// continued, and KindNoPausedThreads is returned when that thread is
// not paused.
func (r *Registry) ContinueThread(ctx context.Context, sessionID, threadID string, action types.ContinueAction) error {
	if !types.ValidContinueAction(action) {
		return types.NewError("ContinueThread", types.KindInvalidAction, fmt.Errorf("action %q", action))
	}
	st, err := r.get(sessionID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	rec, ok := st.paused[threadID]
	if ok {
		delete(st.paused, threadID)
	}
	st.mu.Unlock()
	if !ok {
		return types.NewError("ContinueThread", types.KindNoPausedThreads, nil)
	}
	if err := r.tracer.ContinueThread(ctx, sessionID, threadID, action); err != nil {
		return types.NewError("ContinueThread", types.KindTracerError, err)
	}
	rec.Release()
	return nil
}

// UpdateFridaPatterns validates and applies a trace-pattern / watch
// delta, enforcing the limits in the component design: at most 32
// watches, expression length <= 256 bytes, depth <= 10.
func (r *Registry) UpdateFridaPatterns(ctx context.Context, sessionID string, add, remove []string, watchAdds []types.Watch, watchRemoves []string) (installed, matched int, err error) {
	st, err := r.get(sessionID)
	if err != nil {
		return 0, 0, err
	}

	st.mu.Lock()
	candidateCount := len(st.watches) + len(watchAdds) - len(watchRemoves)
	st.mu.Unlock()
	if candidateCount > types.MaxWatches {
		return 0, 0, types.NewError("UpdateFridaPatterns", types.KindValidationError,
			fmt.Errorf("watch count %d exceeds max %d", candidateCount, types.MaxWatches))
	}
	for _, w := range watchAdds {
		if len(w.Expression) > types.MaxWatchExprLen {
			return 0, 0, types.NewError("UpdateFridaPatterns", types.KindValidationError,
				fmt.Errorf("watch expression exceeds %d bytes", types.MaxWatchExprLen))
		}
		if watchDepth(w.Expression) > types.MaxWatchDepth {
			return 0, 0, types.NewError("UpdateFridaPatterns", types.KindValidationError,
				fmt.Errorf("watch expression depth exceeds %d", types.MaxWatchDepth))
		}
	}

	result, err := r.tracer.InstallHooks(ctx, sessionID, add)
	if err != nil {
		return 0, 0, types.NewError("UpdateFridaPatterns", types.KindTracerError, err)
	}
	if len(remove) > 0 {
		if err := r.tracer.RemoveHooks(ctx, sessionID, remove); err != nil {
			r.log.Warn("remove_hooks soft failure", logging.F("session", sessionID), logging.F("err", err))
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, p := range add {
		st.patterns[p] = struct{}{}
	}
	for _, p := range remove {
		delete(st.patterns, p)
	}
	st.watches = append(st.watches, watchAdds...)
	if len(watchRemoves) > 0 {
		remset := map[string]struct{}{}
		for _, label := range watchRemoves {
			remset[label] = struct{}{}
		}
		filtered := st.watches[:0]
		for _, w := range st.watches {
			if _, drop := remset[w.Label]; !drop {
				filtered = append(filtered, w)
			}
		}
		st.watches = filtered
	}
	return result.Installed, result.Matched, nil
}

// watchDepth counts `.`/`->` member-access operators in an expression,
// a rough proxy for nesting depth.
func watchDepth(expr string) int {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch {
		case expr[i] == '.':
			depth++
		case expr[i] == '-' && i+1 < len(expr) && expr[i+1] == '>':
			depth++
			i++
		}
	}
	return depth
}

// ExecuteDebugRead forwards expression-read requests to the tracer's
// in-process agent; the Registry never evaluates expressions itself.
func (r *Registry) ExecuteDebugRead(ctx context.Context, sessionID string, exprs []string) ([]tracer.ReadResult, error) {
	if _, err := r.get(sessionID); err != nil {
		return nil, err
	}
	results, err := r.tracer.ExecuteDebugRead(ctx, sessionID, exprs)
	if err != nil {
		return nil, types.NewError("ExecuteDebugRead", types.KindTracerError, err)
	}
	return results, nil
}

// StopSession is the idempotent teardown: cancels the writer and
// stuck-sampler tasks, kills the target tree, and clears all four
// per-session collections (breakpoints, log points, watches, paused
// threads). The session entry itself is kept, not deleted, so queries
// against a stopped session see empty collections rather than
// session_not_found.
func (r *Registry) StopSession(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	st, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil // never existed: idempotent no-op
	}

	st.mu.Lock()
	if st.status == types.SessionStatusStopped {
		st.mu.Unlock()
		return nil // already stopped: idempotent no-op
	}
	st.status = types.SessionStatusStopped
	cancel := st.cancelTasks
	group := st.tasks
	pid := st.pid
	paused := st.paused
	st.cancelTasks = nil
	st.tasks = nil
	st.paused = map[string]*types.PauseRecord{}
	st.breakpoints = map[string]*types.Breakpoint{}
	st.logpoints = map[string]*types.LogPoint{}
	st.watches = nil
	st.patterns = map[string]struct{}{}
	st.mu.Unlock()

	// synthetic "resume on cancel": no debuggee thread is left blocked
	for _, rec := range paused {
		rec.Release()
	}

	if cancel != nil {
		cancel()
	}
	if group != nil {
		done := make(chan error, 1)
		go func() { done <- group.Wait() }()
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	if pid > 0 {
		if err := r.tracer.KillTree(ctx, pid); err != nil {
			return types.NewError("StopSession", types.KindTracerError, err)
		}
	}
	return nil
}
