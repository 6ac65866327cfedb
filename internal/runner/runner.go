// Package runner orchestrates one test execution end to end: pick an
// adapter, build a command, spawn it under the tracer, stream events
// into the store, watch for stuck progress, and persist a details
// file once the child exits.
package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"strobe/internal/adapters"
	"strobe/internal/config"
	"strobe/internal/logging"
	"strobe/internal/registry"
	"strobe/internal/store"
	"strobe/internal/stuckdetector"
	"strobe/internal/tracer"
	"strobe/internal/types"
)

// Request is the normalized shape of a DebugTestRequest after
// tokenization.
type Request struct {
	ProjectRoot   string
	Framework     string
	Level         adapters.TestLevel
	Test          string
	Command       string
	TracePatterns []string
	Watches       []types.Watch
	Env           map[string]string
	TimeoutMs     int64
}

// Result is what the Runner returns to the caller.
type Result struct {
	Framework   string
	Summary     types.Summary
	Failures    []types.TestFailure
	DetailsPath string
	SessionID   string
}

// CPUTimeFunc mirrors the stuckdetector function type so the Runner
// can wire platform primitives without importing build-tag-specific
// files directly.
type CPUTimeFunc = stuckdetector.CPUTimeFunc

// Runner is the composition root for one test execution. It holds no
// per-call state; a single Runner serves many concurrent requests.
type Runner struct {
	events   *store.EventStore
	sessions *registry.Registry
	tracerC  tracer.Client
	settings config.Settings
	cpuTime  CPUTimeFunc
	log      logging.Logger
}

func New(events *store.EventStore, sessions *registry.Registry, tracerC tracer.Client, settings config.Settings, cpuTime CPUTimeFunc, log logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{events: events, sessions: sessions, tracerC: tracerC, settings: settings, cpuTime: cpuTime, log: log}
}

// Run executes req end to end per the ten-step algorithm.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	adapter, err := r.selectAdapter(req)
	if err != nil {
		return Result{}, err
	}

	cmd, err := r.buildCommand(req, adapter)
	if err != nil {
		return Result{}, err
	}

	sessionID := newSessionID()
	if _, err := r.events.CreateSession(sessionID, cmd.Program+" "+strings.Join(cmd.Args, " "), req.ProjectRoot, 0); err != nil {
		return Result{}, types.NewError("Run", types.KindIoError, err)
	}

	deferResume := len(req.TracePatterns) > 0 || len(req.Watches) > 0
	pid, err := r.sessions.SpawnWithTracer(ctx, sessionID, cmd.Program, cmd.Args, envSlice(cmd.Env), req.ProjectRoot, deferResume)
	if err != nil {
		return Result{}, err
	}
	_ = r.events.UpdateSessionPID(sessionID, pid)

	if deferResume {
		if _, _, err := r.sessions.UpdateFridaPatterns(ctx, sessionID, req.TracePatterns, nil, req.Watches, nil); err != nil {
			r.log.Warn("trace_pattern_install_soft_failure", logging.F("session", sessionID), logging.F("err", err.Error()))
		}
		if err := r.sessions.ResumeProcess(ctx, pid); err != nil {
			return Result{}, err
		}
	}

	timeout := req.TimeoutMs
	if timeout <= 0 {
		timeout = adapter.DefaultTimeout(req.Level)
	}
	detector := stuckdetector.New(pid, r.cpuTime, r.tracerC.CaptureNativeStacks, r.sessionEventCount(sessionID), 0, r.log)
	if req.Test != "" {
		if baselineMs, ok, err := r.events.GetTestBaseline(req.Test, req.ProjectRoot); err != nil {
			r.log.Warn("baseline_lookup_failed", logging.F("test", req.Test), logging.F("err", err.Error()))
		} else if ok {
			detector.SetBaseline(baselineMs, time.Duration(r.settings.TestStatusRetryMs)*time.Millisecond)
		}
	}

	// The writer task and the stuck sampler share one errgroup-derived
	// context so a single cancel (below, or from Registry.StopSession)
	// stops both instead of tracking two independent cancel/done pairs.
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	tasks, groupCtx := errgroup.WithContext(taskCtx)
	tasks.Go(func() error {
		r.runWriter(groupCtx, sessionID)
		return nil
	})
	tasks.Go(func() error {
		detector.Run(groupCtx)
		return nil
	})
	_ = r.sessions.AttachTasks(sessionID, cancelTasks, tasks)

	exitCode, stdout, stderr, timedOut := r.waitWithTimeout(ctx, pid, timeout)
	cancelTasks()
	_ = tasks.Wait()

	result := adapter.ParseOutput(stdout, stderr, exitCode)
	result.Stuck = append(result.Stuck, detector.StuckEntries()...)
	if timedOut {
		result.Stuck = append(result.Stuck, types.StuckEntry{Reason: "run exceeded timeout of " + time.Duration(timeout*int64(time.Millisecond)).String()})
		result.Summary.Stuck = true
	} else if len(detector.StuckEntries()) > 0 {
		result.Summary.Stuck = true
	}

	recordedAt := time.Now().Unix()
	for _, td := range result.AllTests {
		if err := r.events.RecordTestBaseline(td.Name, req.ProjectRoot, td.DurationMs, baselineStatus(td.Status), recordedAt); err != nil {
			r.log.Warn("baseline_record_failed", logging.F("test", td.Name), logging.F("err", err.Error()))
		}
	}

	detailsPath, err := writeDetailsFile(adapter.Name(), result, stdout, stderr)
	if err != nil {
		r.log.Warn("details_file_write_failed", logging.F("session", sessionID), logging.F("err", err.Error()))
	}

	_ = r.events.UpdateSessionStatus(sessionID, types.SessionStatusExited)
	_ = r.sessions.StopSession(ctx, sessionID)

	return Result{
		Framework:   adapter.Name(),
		Summary:     result.Summary,
		Failures:    result.Failures,
		DetailsPath: detailsPath,
		SessionID:   sessionID,
	}, nil
}

func (r *Runner) selectAdapter(req Request) (adapters.TestAdapter, error) {
	if req.Framework != "" {
		a, ok := adapters.ByName(req.Framework)
		if !ok {
			return nil, types.NewError("selectAdapter", types.KindNoFrameworkDetected, fmt.Errorf("unknown framework %q", req.Framework))
		}
		return a, nil
	}
	a, score := adapters.Detect(req.ProjectRoot, req.Command)
	if score <= 0 || a == nil {
		return nil, types.NewError("selectAdapter", types.KindNoFrameworkDetected, fmt.Errorf("no adapter matched %q", req.ProjectRoot))
	}
	return a, nil
}

// buildCommand picks the command to run. A user-supplied command is
// split on whitespace (strings.Fields) and its first token is the
// program, so quoted arguments and paths containing spaces are not
// supported.
func (r *Runner) buildCommand(req Request, adapter adapters.TestAdapter) (adapters.TestCommand, error) {
	if req.Command != "" {
		tokens := strings.Fields(req.Command)
		if len(tokens) == 0 {
			return adapters.TestCommand{}, types.NewError("buildCommand", types.KindValidationError, fmt.Errorf("empty command"))
		}
		return adapters.TestCommand{Program: tokens[0], Args: tokens[1:], Env: req.Env}, nil
	}
	if req.Test != "" {
		cmd, err := adapter.SingleTestCommand(req.ProjectRoot, req.Test)
		if err != nil {
			return adapters.TestCommand{}, err
		}
		return cmd, nil
	}
	cmd, err := adapter.SuiteCommand(req.ProjectRoot, req.Level, req.Env)
	if err != nil {
		return adapters.TestCommand{}, err
	}
	return cmd, nil
}

// runWriter is the single-consumer batched writer task: every
// batchWindow it takes the batch returned by drainPendingEvents and
// inserts it under the configured per-session cap. drainPendingEvents
// always returns nil, so this task writes no events.
func (r *Runner) runWriter(ctx context.Context, sessionID string) {
	const batchWindow = 200 * time.Millisecond
	ticker := time.NewTicker(batchWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := r.drainPendingEvents(sessionID)
			if len(batch) == 0 {
				continue
			}
			if _, _, err := r.events.InsertEventsWithLimit(batch, r.settings.EventsMaxPerSession); err != nil {
				r.log.Warn("event_batch_insert_failed", logging.F("session", sessionID), logging.F("err", err.Error()))
			}
		}
	}
}

// drainPendingEvents stands in for reading the events queued for
// sessionID since the last drain. tracer.Client exposes no event feed,
// so it always returns nil.
func (r *Runner) drainPendingEvents(sessionID string) []types.Event {
	return nil
}

func (r *Runner) sessionEventCount(sessionID string) stuckdetector.EventCountFunc {
	return func() (int, error) {
		count, err := r.events.CountEvents(sessionID)
		return int(count), err
	}
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(buf)
}

// baselineStatus maps an adapter-reported per-test status onto the
// status strings record_test_baseline persists and get_test_baseline
// averages over ("passed" runs only).
func baselineStatus(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "passed"
	case types.TestStatusSkip:
		return "skipped"
	default:
		return "failed"
	}
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// waitWithTimeout races the tracer's blocking Wait against timeoutMs.
// On timeout it kills the process tree and returns whatever output the
// child produced before being killed.
func (r *Runner) waitWithTimeout(ctx context.Context, pid int, timeoutMs int64) (exitCode int, stdout, stderr string, timedOut bool) {
	type waitResult struct {
		exitCode       int
		stdout, stderr string
		err            error
	}
	resultCh := make(chan waitResult, 1)
	go func() {
		code, out, errOut, err := r.tracerC.Wait(ctx, pid)
		resultCh <- waitResult{code, out, errOut, err}
	}()

	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res.exitCode, res.stdout, res.stderr, false
	case <-timer.C:
		_, _ = r.tracerC.CaptureNativeStacks(ctx, pid)
		_ = r.tracerC.KillTree(ctx, pid)
		res := <-resultCh
		return -1, res.stdout, res.stderr, true
	case <-ctx.Done():
		_ = r.tracerC.KillTree(ctx, pid)
		res := <-resultCh
		return -1, res.stdout, res.stderr, true
	}
}

func writeDetailsFile(framework string, result types.TestResult, rawStdout, rawStderr string) (string, error) {
	dir := config.DetailsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	id := logging.NewRequestID()
	date := time.Now().UTC().Format("2006-01-02")
	path := filepath.Join(dir, id+"-"+date+".json")

	doc := result.Details(framework, rawStdout, rawStderr)
	if err := store.WriteJSONAtomic(path, doc); err != nil {
		return "", err
	}
	return path, nil
}
