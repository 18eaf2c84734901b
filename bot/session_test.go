package bot

import (
	"testing"
	"time"
)

func TestSessionStoreReturnsSameSession(t *testing.T) {
	store := NewSessionStore(30*time.Minute, 10, time.Minute)
	defer store.Close()

	a := store.GetOrCreate(42)
	b := store.GetOrCreate(42)
	if a != b {
		t.Error("same id should return the same session")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestSessionStartsIdle(t *testing.T) {
	store := NewSessionStore(30*time.Minute, 10, time.Minute)
	defer store.Close()

	sess := store.GetOrCreate(1)
	if sess.State() != StateIdle {
		t.Errorf("new session state = %v, want idle", sess.State())
	}
}

func TestEvictIdleKeepsActiveSessions(t *testing.T) {
	store := NewSessionStore(10*time.Minute, 10, time.Minute)
	defer store.Close()

	stale := store.GetOrCreate(1)
	active := store.GetOrCreate(2)

	now := time.Now()
	stale.touch(now.Add(-time.Hour))
	active.touch(now)

	store.evictIdle(now)

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}
	if store.GetOrCreate(2) != active {
		t.Error("active session was evicted")
	}
}

// An evicted session is recreated in idle state, so a returning user starts
// from the menu rather than a stale dialog position.
func TestEvictedSessionRestartsIdle(t *testing.T) {
	store := NewSessionStore(10*time.Minute, 10, time.Minute)
	defer store.Close()

	sess := store.GetOrCreate(1)
	sess.SetState(StateAwaitingSectionQuery)
	sess.touch(time.Now().Add(-time.Hour))

	store.evictIdle(time.Now())

	recreated := store.GetOrCreate(1)
	if recreated == sess {
		t.Fatal("session should have been evicted")
	}
	if recreated.State() != StateIdle {
		t.Errorf("recreated session state = %v, want idle", recreated.State())
	}
}
