package events

import (
	"sort"
	"sync"
	"time"
)

// Store keeps the latest event per session. Sessions that have not reported
// within ttl are dropped on the next snapshot; ttl <= 0 keeps them forever.
type Store struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]Event
}

func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, data: make(map[string]Event)}
}

// Upsert replaces the session's entry unless e is older than what is stored.
func (s *Store) Upsert(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.data[e.Session]; ok && e.TS.Before(cur.TS) {
		return
	}
	s.data[e.Session] = e
}

// Publish implements Sink.
func (s *Store) Publish(e Event) {
	s.Upsert(e)
}

// Remove forgets a session.
func (s *Store) Remove(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, session)
}

func (s *Store) Snapshot(now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(now, false)
}

// SnapshotFailed returns only sessions whose last command exited non-zero.
func (s *Store) SnapshotFailed(now time.Time) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(now, true)
}

func (s *Store) snapshotLocked(now time.Time, failedOnly bool) []Event {
	if s.ttl > 0 {
		for session, e := range s.data {
			if now.Sub(e.TS) > s.ttl {
				delete(s.data, session)
			}
		}
	}
	result := make([]Event, 0, len(s.data))
	for _, e := range s.data {
		if failedOnly && !e.Failed() {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Session < result[j].Session
	})
	return result
}
