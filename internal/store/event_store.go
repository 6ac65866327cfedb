// Package store implements the Event Store: an ordered, append-mostly
// log of heterogeneous events partitioned by session, backed by an
// embedded bbolt database so it satisfies the "local embedded database
// (B-tree indexed)" persistence contract without a server process.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"strobe/internal/types"
)

var (
	bucketSessions  = []byte("sessions")
	bucketBaselines = []byte("test_baselines")
)

func eventsBucketName(sessionID string) []byte {
	return []byte("events:" + sessionID)
}

// EventStore is the Event Store described in component A. All
// operations are safe for concurrent use from multiple writers;
// bbolt's single-writer-many-readers transaction model already gives
// readers a consistent snapshot per call, so no additional locking is
// needed around the database handle itself. A small in-process mutex
// serializes the read-modify-write sequence of insert_events_with_limit
// so eviction bookkeeping cannot race with itself.
type EventStore struct {
	db       *bolt.DB
	evictMu  sync.Mutex
	eventSeq uint64
	seqMu    sync.Mutex
}

// Open creates or opens the bbolt database at path, creating parent
// directories as needed.
func Open(path string) (*EventStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, types.NewError("store.Open", types.KindIoError, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, types.NewError("store.Open", types.KindIoError, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSessions); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBaselines)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, types.NewError("store.Open", types.KindIoError, err)
	}
	return &EventStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *EventStore) Close() error {
	return s.db.Close()
}

// CreateSession records a new Session row, failing if id already
// exists.
func (s *EventStore) CreateSession(id, command, projectRoot string, pid int) (*types.Session, error) {
	sess := &types.Session{
		ID:          id,
		Command:     command,
		ProjectRoot: projectRoot,
		PID:         pid,
		Status:      types.SessionStatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(id)) != nil {
			return types.NewError("CreateSession", types.KindValidationError, fmt.Errorf("duplicate session id %q", id))
		}
		raw, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), raw); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(eventsBucketName(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// GetSession returns a clone of the stored session.
func (s *EventStore) GetSession(id string) (*types.Session, error) {
	var sess types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSessions).Get([]byte(id))
		if raw == nil {
			return types.NewError("GetSession", types.KindSessionNotFound, nil)
		}
		return json.Unmarshal(raw, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// UpdateSessionPID sets the pid once it is known after spawn.
func (s *EventStore) UpdateSessionPID(id string, pid int) error {
	return s.mutateSession(id, func(sess *types.Session) {
		sess.PID = pid
	})
}

// UpdateSessionStatus transitions a session's status.
func (s *EventStore) UpdateSessionStatus(id string, status types.SessionStatus) error {
	return s.mutateSession(id, func(sess *types.Session) {
		sess.Status = status
	})
}

func (s *EventStore) mutateSession(id string, mutate func(*types.Session)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		raw := b.Get([]byte(id))
		if raw == nil {
			return types.NewError("mutateSession", types.KindSessionNotFound, nil)
		}
		var sess types.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		mutate(&sess)
		out, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

func (s *EventStore) nextSeq() uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	s.eventSeq++
	return s.eventSeq
}

// eventKey orders lexically by (timestamp, sequence) so bucket
// iteration order is chronological with deterministic nanosecond
// tie-breaks by insertion order, matching the ordering guarantee in
// the concurrency model.
func eventKey(timestampNanos int64, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], uint64(timestampNanos))
	binary.BigEndian.PutUint64(key[8:16], seq)
	return key
}

// InsertEvent appends a single event.
func (s *EventStore) InsertEvent(e types.Event) error {
	return s.InsertEventsBatch([]types.Event{e})
}

// InsertEventsBatch appends es atomically, preserving slice order.
func (s *EventStore) InsertEventsBatch(es []types.Event) error {
	if len(es) == 0 {
		return nil
	}
	sessionID := es[0].SessionID
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucketName(sessionID))
		if b == nil {
			return types.NewError("InsertEventsBatch", types.KindSessionNotFound, nil)
		}
		for _, e := range es {
			raw, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := b.Put(eventKey(e.TimestampNanos, s.nextSeq()), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertEventsWithLimit inserts es and then evicts the oldest events
// of that session until it retains no more than max events. max must
// be in [1, 10_000_000].
func (s *EventStore) InsertEventsWithLimit(es []types.Event, max int) (inserted, deleted int, err error) {
	if max < types.MinEventLimit || max > types.MaxEventLimit {
		return 0, 0, types.NewError("InsertEventsWithLimit", types.KindValidationError,
			fmt.Errorf("max_events %d out of range [%d, %d]", max, types.MinEventLimit, types.MaxEventLimit))
	}
	if len(es) == 0 {
		return 0, 0, nil
	}
	sessionID := es[0].SessionID

	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	if err := s.InsertEventsBatch(es); err != nil {
		return 0, 0, err
	}
	inserted = len(es)

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucketName(sessionID))
		if b == nil {
			return types.NewError("InsertEventsWithLimit", types.KindSessionNotFound, nil)
		}
		count := b.Stats().KeyN
		if count <= max {
			return nil
		}
		toDelete := count - max
		cursor := b.Cursor()
		k, _ := cursor.First()
		for i := 0; i < toDelete && k != nil; i++ {
			if err := cursor.Delete(); err != nil {
				return err
			}
			deleted++
			k, _ = cursor.Next()
		}
		return nil
	})
	if err != nil {
		return inserted, deleted, err
	}
	return inserted, deleted, nil
}

// QueryEvents returns events for sessionID matching filter, honoring
// limit and sort order.
func (s *EventStore) QueryEvents(sessionID string, filter types.EventFilter) ([]types.Event, error) {
	filter = filter.Normalize()
	var out []types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucketName(sessionID))
		if b == nil {
			return types.NewError("QueryEvents", types.KindSessionNotFound, nil)
		}
		return b.ForEach(func(_, raw []byte) error {
			var e types.Event
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			if filter.Matches(e) {
				out = append(out, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if filter.Descending {
		sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampNanos > out[j].TimestampNanos })
	}
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountEvents returns the number of stored events for a session.
func (s *EventStore) CountEvents(sessionID string) (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucketName(sessionID))
		if b == nil {
			return types.NewError("CountEvents", types.KindSessionNotFound, nil)
		}
		count = uint64(b.Stats().KeyN)
		return nil
	})
	return count, err
}

// DeleteSessionEvents removes the events bucket for a session,
// invoked when a session is torn down.
func (s *EventStore) DeleteSessionEvents(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket(eventsBucketName(sessionID))
	})
}
