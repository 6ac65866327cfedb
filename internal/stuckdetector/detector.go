// Package stuckdetector samples a test run's progress at a fixed
// cadence and escalates to native stack capture when the run appears
// wedged, plus flags individual tests that run far past their
// historical baseline.
package stuckdetector

import (
	"context"
	"sync"
	"time"

	"strobe/internal/logging"
	"strobe/internal/types"
)

const (
	sampleInterval    = 500 * time.Millisecond
	defaultThreshold  = 5 * time.Millisecond
	warnAfterSamples  = 6
	stuckAfterSamples = 12
)

// CPUTimeFunc returns the accumulated user+kernel CPU time consumed by
// pid and its descendants. Implementations are platform-specific;
// production callers wire this to /proc or gopsutil.
type CPUTimeFunc func(pid int) (time.Duration, error)

// StackCaptureFunc captures native stacks for pid, used on escalation.
type StackCaptureFunc func(ctx context.Context, pid int) ([]types.ThreadStack, error)

// EventCountFunc reports how many events the session has accumulated,
// used as a second progress signal alongside CPU time.
type EventCountFunc func() (int, error)

// Detector watches one running test process for lack of progress.
type Detector struct {
	pid           int
	cpuTime       CPUTimeFunc
	captureStacks StackCaptureFunc
	eventCount    EventCountFunc
	threshold     time.Duration
	log           logging.Logger

	startedAt time.Time

	mu                sync.Mutex
	warnings          []string
	stuckEntries      []types.StuckEntry
	consecutiveIdle   int
	lastCPU           time.Duration
	lastEventCount    int
	escalated         bool
	baselineMs        int64
	retryThreshold    time.Duration
	baselineWarned    bool
	baselineEscalated bool
}

// New builds a Detector for pid. threshold <= 0 uses the default of
// 5ms of CPU progress per 500ms sampling interval.
func New(pid int, cpuTime CPUTimeFunc, captureStacks StackCaptureFunc, eventCount EventCountFunc, threshold time.Duration, log logging.Logger) *Detector {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Detector{pid: pid, cpuTime: cpuTime, captureStacks: captureStacks, eventCount: eventCount, threshold: threshold, log: log, startedAt: time.Now()}
}

// SetBaseline enables the baseline-aware per-test check alongside the
// CPU/event sampling: once retryThreshold has elapsed, every sample
// also compares total elapsed time against baselineMs via
// BaselineCheck. Call before Run(). A baselineMs of 0 (the default,
// meaning no recorded history) leaves this check disabled.
func (d *Detector) SetBaseline(baselineMs int64, retryThreshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baselineMs = baselineMs
	d.retryThreshold = retryThreshold
}

// Run samples until ctx is cancelled, typically alongside the Runner's
// wait-for-exit. It never blocks the caller beyond the sampling
// cadence and does not return an error: sampling failures are logged
// and treated as "no progress detected this tick."
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sample(ctx)
		}
	}
}

func (d *Detector) sample(ctx context.Context) {
	cpu, err := d.cpuTime(d.pid)
	if err != nil {
		d.log.Warn("stuck_detector_cpu_sample_failed", logging.F("pid", d.pid), logging.F("error", err.Error()))
		return
	}
	events, _ := d.eventCount()

	d.mu.Lock()
	defer d.mu.Unlock()

	delta := cpu - d.lastCPU
	d.lastCPU = cpu
	noNewEvents := events <= d.lastEventCount
	d.lastEventCount = events

	if delta < d.threshold && noNewEvents {
		d.consecutiveIdle++
	} else {
		d.consecutiveIdle = 0
		d.escalated = false
	}

	switch {
	case d.consecutiveIdle == warnAfterSamples:
		d.warnings = append(d.warnings, "no progress for approximately 3s")
		d.log.Info("stuck_detector_warning", logging.F("pid", d.pid))
	case d.consecutiveIdle >= stuckAfterSamples && !d.escalated:
		d.escalated = true
		stacks, err := d.captureStacks(ctx, d.pid)
		if err != nil {
			d.log.Warn("stuck_detector_capture_failed", logging.F("pid", d.pid), logging.F("error", err.Error()))
		}
		d.stuckEntries = append(d.stuckEntries, types.StuckEntry{
			Reason: "no progress for approximately 6s",
			Stacks: stacks,
		})
		d.log.Warn("stuck_detector_escalated", logging.F("pid", d.pid), logging.F("stacks", len(stacks)))
	}

	if d.baselineMs <= 0 {
		return
	}
	madeProgress := delta >= d.threshold || !noNewEvents
	elapsed := time.Since(d.startedAt)
	warning, stuck := BaselineCheck(elapsed, d.retryThreshold, d.baselineMs, madeProgress)
	switch {
	case stuck && !d.baselineEscalated:
		d.baselineEscalated = true
		stacks, err := d.captureStacks(ctx, d.pid)
		if err != nil {
			d.log.Warn("stuck_detector_baseline_capture_failed", logging.F("pid", d.pid), logging.F("error", err.Error()))
		}
		d.stuckEntries = append(d.stuckEntries, types.StuckEntry{
			Reason: "test has run over 10x its historical baseline with no progress",
			Stacks: stacks,
		})
		d.log.Warn("stuck_detector_baseline_escalated", logging.F("pid", d.pid))
	case warning != "" && !d.baselineWarned:
		d.baselineWarned = true
		d.warnings = append(d.warnings, warning)
		d.log.Info("stuck_detector_baseline_warning", logging.F("pid", d.pid))
	case madeProgress:
		d.baselineWarned = false
		d.baselineEscalated = false
	}
}

// Warnings returns accumulated run-level warnings (a copy, safe to read concurrently).
func (d *Detector) Warnings() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.warnings))
	copy(out, d.warnings)
	return out
}

// StuckEntries returns the accumulated stuck advisories for the run.
func (d *Detector) StuckEntries() []types.StuckEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.StuckEntry, len(d.stuckEntries))
	copy(out, d.stuckEntries)
	return out
}

// BaselineCheck evaluates a single in-flight test's elapsed time
// against its historical baseline and retry threshold. It returns a
// warning message when elapsed exceeds 3x baseline, and reports stuck
// when it exceeds 10x baseline with no sign of progress.
func BaselineCheck(elapsed time.Duration, retryThreshold time.Duration, baselineMs int64, madeProgress bool) (warning string, stuck bool) {
	if elapsed < retryThreshold || baselineMs <= 0 {
		return "", false
	}
	baseline := time.Duration(baselineMs) * time.Millisecond
	switch {
	case elapsed > baseline*10 && !madeProgress:
		return "", true
	case elapsed > baseline*3:
		return "test has run over 3x its historical baseline", false
	default:
		return "", false
	}
}
