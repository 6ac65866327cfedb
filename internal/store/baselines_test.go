package store

import (
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func loadHistoryForTest(s *EventStore, testName, projectRoot string) ([]baselineRecord, error) {
	var history []baselineRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaselines)
		h, err := loadBaselineHistory(b, baselineKey(projectRoot, testName))
		history = h
		return err
	})
	return history, err
}

func TestBaselineRollingMeanOverLastTen(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for i := int64(0); i < 25; i++ {
		if err := s.RecordTestBaseline("test_x", "/project", 1000+i, "passed", i); err != nil {
			t.Fatalf("RecordTestBaseline: %v", err)
		}
	}
	mean, ok, err := s.GetTestBaseline("test_x", "/project")
	if err != nil {
		t.Fatalf("GetTestBaseline: %v", err)
	}
	if !ok {
		t.Fatalf("expected a baseline")
	}
	// last 10 recorded (most recent first) are durations 1024..1015 (i=24..15)
	// mean = average(1015..1024) = 1019.5 -> rounds to 1020
	if mean != 1020 {
		t.Fatalf("expected mean 1020, got %d", mean)
	}
}

func TestBaselineIgnoresFailedRuns(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_ = s.RecordTestBaseline("test_auth", "/project", 1000, "passed", 1)
	_ = s.RecordTestBaseline("test_auth", "/project", 1200, "passed", 2)
	_ = s.RecordTestBaseline("test_auth", "/project", 1100, "passed", 3)
	_ = s.RecordTestBaseline("test_auth", "/project", 9999, "failed", 4)

	mean, ok, err := s.GetTestBaseline("test_auth", "/project")
	if err != nil {
		t.Fatalf("GetTestBaseline: %v", err)
	}
	if !ok || mean != 1100 {
		t.Fatalf("expected mean 1100, got %d (ok=%v)", mean, ok)
	}
}

func TestCleanupOldBaselinesKeepsTwenty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for i := int64(0); i < 25; i++ {
		_ = s.RecordTestBaseline("test_x", "/project", 1000+i, "passed", i)
	}
	if err := s.CleanupOldBaselines("/project"); err != nil {
		t.Fatalf("CleanupOldBaselines: %v", err)
	}
	history, err := loadHistoryForTest(s, "test_x", "/project")
	if err != nil {
		t.Fatalf("loadHistoryForTest: %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("expected 20 retained rows, got %d", len(history))
	}
}

func TestGetTestBaselineNoneRecorded(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	_, ok, err := s.GetTestBaseline("never_run", "/project")
	if err != nil {
		t.Fatalf("GetTestBaseline: %v", err)
	}
	if ok {
		t.Fatalf("expected no baseline")
	}
}
