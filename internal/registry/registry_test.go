package registry

import (
	"context"
	"testing"

	"strobe/internal/tracer"
	"strobe/internal/types"
)

func newTestRegistry() *Registry {
	return New(tracer.NewFake(), nil)
}

func TestUnknownSessionReturnsSessionNotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.GetBreakpoints("missing")
	if !types.Is(err, types.KindSessionNotFound) {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestContinueThreadNoPausedThreads(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	err := r.ContinueThread(context.Background(), "sess-1", "t1", types.ActionContinue)
	if !types.Is(err, types.KindNoPausedThreads) {
		t.Fatalf("expected no_paused_threads, got %v", err)
	}
}

func TestContinueThreadInvalidAction(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	if err := r.RecordPause("sess-1", "t1", "bp-1"); err != nil {
		t.Fatalf("RecordPause: %v", err)
	}
	err := r.ContinueThread(context.Background(), "sess-1", "t1", types.ContinueAction("jump"))
	if !types.Is(err, types.KindInvalidAction) {
		t.Fatalf("expected invalid_action, got %v", err)
	}
}

func TestContinueThreadReleasesPause(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	if err := r.RecordPause("sess-1", "t1", "bp-1"); err != nil {
		t.Fatalf("RecordPause: %v", err)
	}
	if err := r.ContinueThread(context.Background(), "sess-1", "t1", types.ActionContinue); err != nil {
		t.Fatalf("ContinueThread: %v", err)
	}
	paused, err := r.GetAllPausedThreads("sess-1")
	if err != nil {
		t.Fatalf("GetAllPausedThreads: %v", err)
	}
	if len(paused) != 0 {
		t.Fatalf("expected no paused threads after continue, got %v", paused)
	}
}

func TestUpdateFridaPatternsRejectsTooManyWatches(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	watches := make([]types.Watch, types.MaxWatches+1)
	for i := range watches {
		watches[i] = types.Watch{Expression: "x", Label: string(rune('a' + i%26))}
	}
	_, _, err := r.UpdateFridaPatterns(context.Background(), "sess-1", nil, nil, watches, nil)
	if !types.Is(err, types.KindValidationError) {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestUpdateFridaPatternsRejectsLongExpression(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	long := make([]byte, types.MaxWatchExprLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err := r.UpdateFridaPatterns(context.Background(), "sess-1", nil, nil, []types.Watch{{Expression: string(long)}}, nil)
	if !types.Is(err, types.KindValidationError) {
		t.Fatalf("expected validation_error, got %v", err)
	}
}

func TestUpdateFridaPatternsInstallsHooks(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 123)
	installed, matched, err := r.UpdateFridaPatterns(context.Background(), "sess-1", []string{"audio::*"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("UpdateFridaPatterns: %v", err)
	}
	if installed != 1 || matched != 1 {
		t.Fatalf("expected installed=1 matched=1, got installed=%d matched=%d", installed, matched)
	}
}

func TestStopSessionClearsAllCollections(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 0)
	if _, err := r.SetBreakpoint(context.Background(), "sess-1", types.Breakpoint{ID: "bp-1", Location: "mod::fn"}); err != nil {
		t.Fatalf("SetBreakpoint: %v", err)
	}
	if _, err := r.SetLogPoint(context.Background(), "sess-1", types.LogPoint{ID: "lp-1", Location: "mod::fn", Message: "hi"}); err != nil {
		t.Fatalf("SetLogPoint: %v", err)
	}
	if err := r.RecordPause("sess-1", "t1", "bp-1"); err != nil {
		t.Fatalf("RecordPause: %v", err)
	}

	if err := r.StopSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("StopSession: %v", err)
	}

	bps, err := r.GetBreakpoints("sess-1")
	if err != nil {
		t.Fatalf("GetBreakpoints after stop: %v", err)
	}
	if len(bps) != 0 {
		t.Fatalf("expected no breakpoints after stop, got %d", len(bps))
	}

	lps, err := r.GetLogPoints("sess-1")
	if err != nil {
		t.Fatalf("GetLogPoints after stop: %v", err)
	}
	if len(lps) != 0 {
		t.Fatalf("expected no log points after stop, got %d", len(lps))
	}

	paused, err := r.GetAllPausedThreads("sess-1")
	if err != nil {
		t.Fatalf("GetAllPausedThreads after stop: %v", err)
	}
	if len(paused) != 0 {
		t.Fatalf("expected no paused threads after stop, got %d", len(paused))
	}
}

func TestStopSessionIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	r.CreateSession("sess-1", 0)
	if err := r.StopSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("first StopSession: %v", err)
	}
	if err := r.StopSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("second StopSession should be a no-op, got: %v", err)
	}
}
