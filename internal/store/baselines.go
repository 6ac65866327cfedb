package store

import (
	"encoding/json"
	"math"

	bolt "go.etcd.io/bbolt"
)

// baselineRecord is one recorded run of a test, kept in recency order
// (most recent first) inside the per-(project,test) history.
type baselineRecord struct {
	DurationMs int64  `json:"durationMs"`
	Status     string `json:"status"`
	RecordedAt int64  `json:"recordedAt"`
}

const (
	baselineWindow       = 10 // rolling mean over the last N passed runs
	baselineRetainedRows = 20 // cleanup_old_baselines keeps this many rows per test
)

func baselineKey(projectRoot, testName string) []byte {
	return []byte(projectRoot + "\x00" + testName)
}

// RecordTestBaseline appends one run to the (testName, projectRoot)
// history, most-recent-first, trimming to baselineRetainedRows.
func (s *EventStore) RecordTestBaseline(testName, projectRoot string, durationMs int64, status string, recordedAt int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaselines)
		key := baselineKey(projectRoot, testName)
		history, err := loadBaselineHistory(b, key)
		if err != nil {
			return err
		}
		history = append([]baselineRecord{{DurationMs: durationMs, Status: status, RecordedAt: recordedAt}}, history...)
		if len(history) > baselineRetainedRows {
			history = history[:baselineRetainedRows]
		}
		return saveBaselineHistory(b, key, history)
	})
}

// GetTestBaseline returns the rounded arithmetic mean of the last
// (up to) 10 runs recorded with status "passed", or ok=false if there
// are none.
func (s *EventStore) GetTestBaseline(testName, projectRoot string) (durationMs int64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaselines)
		history, ferr := loadBaselineHistory(b, baselineKey(projectRoot, testName))
		if ferr != nil {
			return ferr
		}
		mean, found := meanOfLastPassed(history, baselineWindow)
		durationMs, ok = mean, found
		return nil
	})
	return durationMs, ok, err
}

// GetProjectBaselines returns the rolling mean for every test recorded
// under projectRoot.
func (s *EventStore) GetProjectBaselines(projectRoot string) (map[string]int64, error) {
	out := map[string]int64{}
	prefix := []byte(projectRoot + "\x00")
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaselines)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			testName := string(k[len(prefix):])
			var history []baselineRecord
			if err := json.Unmarshal(v, &history); err != nil {
				return err
			}
			if mean, ok := meanOfLastPassed(history, baselineWindow); ok {
				out[testName] = mean
			}
		}
		return nil
	})
	return out, err
}

// CleanupOldBaselines trims every test's history under projectRoot to
// the last baselineRetainedRows rows regardless of status.
func (s *EventStore) CleanupOldBaselines(projectRoot string) error {
	prefix := []byte(projectRoot + "\x00")
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBaselines)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var history []baselineRecord
			if err := json.Unmarshal(v, &history); err != nil {
				return err
			}
			if len(history) <= baselineRetainedRows {
				continue
			}
			history = history[:baselineRetainedRows]
			if err := saveBaselineHistory(b, append([]byte{}, k...), history); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadBaselineHistory(b *bolt.Bucket, key []byte) ([]baselineRecord, error) {
	raw := b.Get(key)
	if raw == nil {
		return nil, nil
	}
	var history []baselineRecord
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func saveBaselineHistory(b *bolt.Bucket, key []byte, history []baselineRecord) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return b.Put(key, raw)
}

// meanOfLastPassed averages the DurationMs of the first (most recent)
// window entries whose Status is "passed", rounding to the nearest
// integer, matching AVG(...)::round semantics.
func meanOfLastPassed(history []baselineRecord, window int) (int64, bool) {
	var sum int64
	var n int
	for _, rec := range history {
		if rec.Status != "passed" {
			continue
		}
		sum += rec.DurationMs
		n++
		if n >= window {
			break
		}
	}
	if n == 0 {
		return 0, false
	}
	return int64(math.Round(float64(sum) / float64(n))), true
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
