package events

import (
	"testing"
	"time"
)

func TestStore_UpsertAndSnapshot(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(5 * time.Minute)
	s.Upsert(Event{Session: "b", Kind: KindPromptStart, State: StatePrompt, TS: now})
	s.Upsert(Event{Session: "a", Kind: KindCommandExecuted, State: StateRunning, TS: now})

	got := s.Snapshot(now)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Session != "a" || got[1].Session != "b" {
		t.Fatalf("expected sessions sorted a,b, got %s,%s", got[0].Session, got[1].Session)
	}
}

func TestStore_UpsertOverwritesSameSession(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(5 * time.Minute)
	s.Upsert(Event{Session: "s", Kind: KindCommandExecuted, State: StateRunning, TS: now})
	s.Publish(Event{Session: "s", Kind: KindCommandFinished, State: StateIdle, TS: now.Add(time.Second)})

	got := s.Snapshot(now.Add(time.Second))
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Kind != KindCommandFinished {
		t.Fatalf("expected overwritten kind command_finished, got %s", got[0].Kind)
	}
}

func TestStore_IgnoresOutOfOrderEvent(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(0)
	s.Upsert(Event{Session: "s", Kind: KindCommandFinished, State: StateIdle, TS: now})
	s.Upsert(Event{Session: "s", Kind: KindCommandExecuted, State: StateRunning, TS: now.Add(-time.Second)})

	got := s.Snapshot(now)
	if got[0].State != StateIdle {
		t.Fatalf("expected stale event to be ignored, got state %s", got[0].State)
	}
}

func TestStore_SnapshotFailedOnly(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(5 * time.Minute)
	s.Upsert(Event{Session: "ok", Kind: KindCommandFinished, State: StateIdle, TS: now, Commands: 1})
	s.Upsert(Event{Session: "bad", Kind: KindCommandFinished, State: StateIdle, TS: now, Commands: 1, ExitCode: 1})

	got := s.SnapshotFailed(now)
	if len(got) != 1 {
		t.Fatalf("expected 1 failed session, got %d", len(got))
	}
	if got[0].Session != "bad" {
		t.Fatalf("expected session bad, got %s", got[0].Session)
	}
}

func TestStore_ExpiresStaleEntries(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(2 * time.Minute)
	s.Upsert(Event{Session: "s", Kind: KindPromptStart, State: StatePrompt, TS: now})

	if got := s.Snapshot(now.Add(3 * time.Minute)); len(got) != 0 {
		t.Fatalf("expected 0 events after ttl expiry, got %d", len(got))
	}
}

func TestStore_Remove(t *testing.T) {
	now := time.Now().UTC()
	s := NewStore(0)
	s.Upsert(Event{Session: "s", Kind: KindPromptStart, State: StatePrompt, TS: now})
	s.Remove("s")
	if got := s.Snapshot(now); len(got) != 0 {
		t.Fatalf("expected 0 events after remove, got %d", len(got))
	}
}
