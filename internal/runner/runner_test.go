package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"strobe/internal/config"
	"strobe/internal/registry"
	"strobe/internal/store"
	"strobe/internal/tracer"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "events.db")
	events, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = events.Close() })

	fake := tracer.NewFake()
	sessions := registry.New(fake, nil)
	return New(events, sessions, fake, config.Settings{}, func(pid int) (time.Duration, error) { return 0, nil }, nil)
}

func TestRunPassesThroughGenericOutput(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		ProjectRoot: root,
		Command:     "true",
		TimeoutMs:   5000,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Framework != "generic" {
		t.Fatalf("expected the generic adapter to be selected for an explicit command, got %q", res.Framework)
	}
	if res.DetailsPath == "" {
		t.Fatalf("expected a details file path")
	}
	if _, err := os.Stat(res.DetailsPath); err != nil {
		t.Fatalf("expected details file to exist at %s: %v", res.DetailsPath, err)
	}
	t.Cleanup(func() { _ = os.Remove(res.DetailsPath) })
}

func TestRunDetectsFailureFromNonzeroExit(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		ProjectRoot: root,
		Command:     "false",
		TimeoutMs:   5000,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Summary.Failed == 0 {
		t.Fatalf("expected a nonzero exit with no regex matches to synthesize a failure, got %+v", res.Summary)
	}
	t.Cleanup(func() { _ = os.Remove(res.DetailsPath) })
}

func TestRunUnknownFrameworkErrors(t *testing.T) {
	root := t.TempDir()
	r := newTestRunner(t)

	_, err := r.Run(context.Background(), Request{
		ProjectRoot: root,
		Framework:   "not-a-real-framework",
		Command:     "true",
	})
	if err == nil {
		t.Fatalf("expected an error for an unknown framework override")
	}
}
