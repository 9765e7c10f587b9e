package lease

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/rs/zerolog"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(ttl, zerolog.Nop())
}

func TestAcquireExactlyOneWinner(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	const racers = 50
	var wins int64
	var losses int64
	var wg sync.WaitGroup

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := m.Acquire("record-1", "agent-"+string(rune('a'+n%26)), "Agent", 0)
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else if errors.Is(err, types.ErrAlreadyClaimed) {
				atomic.AddInt64(&losses, 1)
			}
		}(i)
	}
	wg.Wait()

	// Racers sharing the winner's agent id refresh instead of losing, so
	// wins counts successful acquires, not distinct holders
	if wins < 1 {
		t.Fatal("expected at least one successful acquire")
	}
	if wins+losses != racers {
		t.Errorf("expected every racer to win or get AlreadyClaimed, got %d+%d", wins, losses)
	}

	info := m.ClaimInfo("record-1")
	if info == nil {
		t.Fatal("expected a live lease after the race")
	}
}

func TestAcquireContention(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	if _, err := m.Acquire("record-1", "alice", "Alice", 0); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	_, err := m.Acquire("record-1", "bob", "Bob", 0)
	if !errors.Is(err, types.ErrAlreadyClaimed) {
		t.Fatalf("expected AlreadyClaimed, got %v", err)
	}
}

func TestAcquireRefreshForHolder(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	first, _ := m.Acquire("record-1", "alice", "Alice", 0)

	current = current.Add(10 * time.Minute)
	second, err := m.Acquire("record-1", "alice", "Alice", 0)
	if err != nil {
		t.Fatalf("re-acquire by holder failed: %v", err)
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("expected re-acquire to push the expiry forward")
	}
}

func TestAcquireAfterExpiry(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Acquire("record-1", "alice", "Alice", 0)

	// An expired lease never blocks a new acquire, even before a sweep
	current = current.Add(21 * time.Minute)
	l, err := m.Acquire("record-1", "bob", "Bob", 0)
	if err != nil {
		t.Fatalf("acquire over expired lease failed: %v", err)
	}
	if l.AgentID != "bob" {
		t.Errorf("expected bob to hold the lease, got %s", l.AgentID)
	}
}

func TestRenew(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Acquire("record-1", "alice", "Alice", 10*time.Minute)

	current = current.Add(5 * time.Minute)
	renewed, err := m.Renew("record-1", "alice")
	if err != nil {
		t.Fatalf("renew failed: %v", err)
	}
	// Renewal extends by the originally requested TTL
	want := current.Add(10 * time.Minute)
	if !renewed.ExpiresAt.Equal(want) {
		t.Errorf("expected expiry %v, got %v", want, renewed.ExpiresAt)
	}

	if _, err := m.Renew("record-1", "bob"); !errors.Is(err, types.ErrNotHolder) {
		t.Errorf("expected NotHolder for non-holder renew, got %v", err)
	}

	current = current.Add(11 * time.Minute)
	if _, err := m.Renew("record-1", "alice"); !errors.Is(err, types.ErrNotHolder) {
		t.Errorf("expected NotHolder for expired renew, got %v", err)
	}
}

func TestRelease(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	m.Acquire("record-1", "alice", "Alice", 0)

	if err := m.Release("record-1", "bob"); !errors.Is(err, types.ErrNotHolder) {
		t.Errorf("expected NotHolder for non-holder release, got %v", err)
	}

	if err := m.Release("record-1", "alice"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	// Releasing again is a no-op
	if err := m.Release("record-1", "alice"); err != nil {
		t.Errorf("expected repeated release to be a no-op, got %v", err)
	}

	if m.IsClaimed("record-1") {
		t.Error("expected no live lease after release")
	}
}

func TestReleaseExpiredIsNoop(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Acquire("record-1", "alice", "Alice", 0)
	current = current.Add(21 * time.Minute)

	// Anyone may "release" an expired lease without error
	if err := m.Release("record-1", "bob"); err != nil {
		t.Errorf("expected expired release to be a no-op, got %v", err)
	}
}

func TestClaimInfo(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	if m.ClaimInfo("record-1") != nil {
		t.Error("expected nil for unclaimed record")
	}

	m.Acquire("record-1", "alice", "Alice", 0)

	info := m.ClaimInfo("record-1")
	if info == nil || info.AgentID != "alice" {
		t.Fatalf("expected alice's lease, got %+v", info)
	}

	if !m.IsClaimedByMe("record-1", "alice") {
		t.Error("expected IsClaimedByMe true for holder")
	}
	if m.IsClaimedByMe("record-1", "bob") {
		t.Error("expected IsClaimedByMe false for non-holder")
	}
}

func TestSweep(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Acquire("record-1", "alice", "Alice", 10*time.Minute)
	m.Acquire("record-2", "bob", "Bob", 30*time.Minute)

	current = current.Add(15 * time.Minute)

	removed := m.Sweep()
	if removed != 1 {
		t.Fatalf("expected 1 expired lease, got %d", removed)
	}

	if m.IsClaimed("record-1") {
		t.Error("expected record-1 lease to be swept")
	}
	if !m.IsClaimed("record-2") {
		t.Error("expected record-2 lease to survive the sweep")
	}

	if again := m.Sweep(); again != 0 {
		t.Errorf("expected repeated sweep to find nothing, got %d", again)
	}
}

func TestSnapshotExcludesExpired(t *testing.T) {
	m := newTestManager(20 * time.Minute)

	current := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	m.Acquire("record-1", "alice", "Alice", 5*time.Minute)
	m.Acquire("record-2", "bob", "Bob", 30*time.Minute)

	current = current.Add(10 * time.Minute)

	snapshot := m.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 live lease, got %d", len(snapshot))
	}
	if snapshot[0].AgentID != "bob" {
		t.Errorf("expected bob's lease, got %s", snapshot[0].AgentID)
	}
}
