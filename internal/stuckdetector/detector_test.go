package stuckdetector

import (
	"context"
	"sync"
	"testing"
	"time"

	"strobe/internal/types"
)

func TestSampleWarnsAfterSixIdleSamples(t *testing.T) {
	d := New(1234, func(int) (time.Duration, error) { return 0, nil },
		func(context.Context, int) ([]types.ThreadStack, error) { return nil, nil },
		func() (int, error) { return 0, nil }, time.Millisecond, nil)

	for i := 0; i < warnAfterSamples; i++ {
		d.sample(context.Background())
	}
	warnings := d.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning after %d idle samples, got %d", warnAfterSamples, len(warnings))
	}
	if len(d.StuckEntries()) != 0 {
		t.Fatalf("should not have escalated yet at %d samples", warnAfterSamples)
	}
}

func TestSampleEscalatesAfterTwelveIdleSamples(t *testing.T) {
	captured := 0
	var mu sync.Mutex
	d := New(1234, func(int) (time.Duration, error) { return 0, nil },
		func(context.Context, int) ([]types.ThreadStack, error) {
			mu.Lock()
			captured++
			mu.Unlock()
			return []types.ThreadStack{{Name: "thread-1", Frames: []string{"main"}}}, nil
		},
		func() (int, error) { return 0, nil }, time.Millisecond, nil)

	for i := 0; i < stuckAfterSamples; i++ {
		d.sample(context.Background())
	}
	entries := d.StuckEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 stuck entry after %d idle samples, got %d", stuckAfterSamples, len(entries))
	}
	if entries[0].Stacks == nil || entries[0].Stacks[0].Name != "thread-1" {
		t.Fatalf("expected captured stacks attached to the stuck entry, got %+v", entries[0])
	}
	if captured != 1 {
		t.Fatalf("expected exactly one capture call, got %d", captured)
	}

	// Further idle samples must not escalate again until progress resets it.
	d.sample(context.Background())
	if len(d.StuckEntries()) != 1 {
		t.Fatalf("escalation should not repeat while still stuck")
	}
}

func TestSampleResetsOnProgress(t *testing.T) {
	cpu := time.Duration(0)
	d := New(1234, func(int) (time.Duration, error) { return cpu, nil },
		func(context.Context, int) ([]types.ThreadStack, error) { return nil, nil },
		func() (int, error) { return 0, nil }, time.Millisecond, nil)

	for i := 0; i < warnAfterSamples-1; i++ {
		d.sample(context.Background())
	}
	cpu = 10 * time.Millisecond
	d.sample(context.Background())

	if len(d.Warnings()) != 0 {
		t.Fatalf("progress should have reset the idle streak before the warning threshold")
	}
}

func TestBaselineCheckBelowRetryThreshold(t *testing.T) {
	warning, stuck := BaselineCheck(100*time.Millisecond, time.Second, 50, false)
	if warning != "" || stuck {
		t.Fatalf("elapsed below retry threshold must never warn or flag stuck")
	}
}

func TestBaselineCheckThreeXWarns(t *testing.T) {
	warning, stuck := BaselineCheck(400*time.Millisecond, 0, 100, true)
	if warning == "" || stuck {
		t.Fatalf("expected a 3x-baseline warning, got warning=%q stuck=%v", warning, stuck)
	}
}

func TestBaselineCheckTenXWithNoProgressIsStuck(t *testing.T) {
	warning, stuck := BaselineCheck(1100*time.Millisecond, 0, 100, false)
	if !stuck {
		t.Fatalf("expected stuck=true at 10x baseline with no progress")
	}
	if warning != "" {
		t.Fatalf("stuck verdict should not also carry a warning message, got %q", warning)
	}
}

func TestBaselineCheckTenXWithProgressOnlyWarns(t *testing.T) {
	warning, stuck := BaselineCheck(1100*time.Millisecond, 0, 100, true)
	if stuck {
		t.Fatalf("progress being made should prevent the stuck verdict even past 10x")
	}
	if warning == "" {
		t.Fatalf("expected a warning since elapsed still exceeds 3x baseline")
	}
}

func TestBaselineCheckNoBaselineNeverFires(t *testing.T) {
	warning, stuck := BaselineCheck(time.Hour, 0, 0, false)
	if warning != "" || stuck {
		t.Fatalf("a missing baseline (<=0) must never warn or flag stuck")
	}
}
