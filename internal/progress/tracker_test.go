package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/rs/zerolog"
)

// captureStore records persisted rows for assertions
type captureStore struct {
	mu   sync.Mutex
	rows []types.DailyProgressRecord
}

func (s *captureStore) SaveDailyProgress(record types.DailyProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, record)
	return nil
}

func (s *captureStore) find(agentID, dayKey string) (types.DailyProgressRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].AgentID == agentID && s.rows[i].DayKey == dayKey {
			return s.rows[i], true
		}
	}
	return types.DailyProgressRecord{}, false
}

func newTestTracker(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	current := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	tracker := NewTracker(loc, nil, zerolog.Nop())
	tracker.now = func() time.Time { return current }
	tracker.lastResetDay = tracker.DayKey(current)
	return tracker, &current
}

func TestRecordCallIncrements(t *testing.T) {
	tracker, current := newTestTracker(t)

	for i := 0; i < 7; i++ {
		tracker.RecordCall("alice", *current)
	}
	tracker.RecordCall("bob", *current)

	if got := tracker.GetProgress("alice").CallsToday; got != 7 {
		t.Errorf("expected 7 calls for alice, got %d", got)
	}
	if got := tracker.GetProgress("bob").CallsToday; got != 1 {
		t.Errorf("expected 1 call for bob, got %d", got)
	}
}

func TestGetProgressUnknownAgentIsZero(t *testing.T) {
	tracker, _ := newTestTracker(t)

	entry := tracker.GetProgress("nobody")
	if entry.CallsToday != 0 {
		t.Errorf("expected zero entry, got %d", entry.CallsToday)
	}
	if entry.DayKey != tracker.CurrentDayKey() {
		t.Errorf("expected current day key, got %s", entry.DayKey)
	}
}

func TestDayRollover(t *testing.T) {
	tracker, current := newTestTracker(t)

	tracker.RecordCall("alice", *current)
	tracker.RecordCall("alice", *current)

	// Cross midnight in the canonical timezone
	*current = current.Add(12 * time.Hour)

	if got := tracker.GetProgress("alice").CallsToday; got != 0 {
		t.Errorf("expected counter reset to 0 after rollover, got %d", got)
	}
	if got := tracker.GetProgress("alice").DayKey; got != tracker.CurrentDayKey() {
		t.Errorf("expected new day key, got %s", got)
	}
}

func TestResetIdempotentWithinDay(t *testing.T) {
	tracker, current := newTestTracker(t)

	*current = current.Add(12 * time.Hour)
	tracker.CheckReset()

	tracker.RecordCall("alice", *current)

	// A second trigger on the same day must not zero anything
	tracker.CheckReset()
	tracker.CheckReset()

	if got := tracker.GetProgress("alice").CallsToday; got != 1 {
		t.Errorf("expected count to survive repeated reset checks, got %d", got)
	}
}

func TestBoundaryCallLandsOnItsOwnDay(t *testing.T) {
	tracker, current := newTestTracker(t)

	beforeMidnight := time.Date(2025, 3, 10, 23, 59, 58, 0, current.Location())
	*current = beforeMidnight

	tracker.RecordCall("alice", beforeMidnight)

	// The call completed before midnight but the increment arrives after
	*current = time.Date(2025, 3, 11, 0, 0, 1, 0, current.Location())
	tracker.CheckReset()
	tracker.RecordCall("alice", beforeMidnight)

	if got := tracker.GetProgress("alice").CallsToday; got != 0 {
		t.Errorf("expected today's counter untouched, got %d", got)
	}

	prev, ok := tracker.previous["alice"]
	if !ok {
		t.Fatal("expected previous-day entry for alice")
	}
	if prev.CallsToday != 2 {
		t.Errorf("expected boundary call on the finished day, got %d", prev.CallsToday)
	}
}

func TestFarOffDayPersistsDirectly(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	store := &captureStore{}

	current := time.Date(2025, 3, 10, 15, 0, 0, 0, loc)
	tracker := NewTracker(loc, store, zerolog.Nop())
	tracker.now = func() time.Time { return current }
	tracker.lastResetDay = tracker.DayKey(current)

	stale := time.Date(2025, 3, 1, 10, 0, 0, 0, loc)
	tracker.RecordCall("alice", stale)
	tracker.RecordCall("alice", stale.Add(time.Minute))

	// Persistence runs detached; a repeat call on the same stale day must
	// accumulate in the persisted row, not overwrite it back to 1
	deadline := time.Now().Add(time.Second)
	for {
		if row, ok := store.find("alice", "2025-03-01"); ok && row.CallsTotal == 2 {
			break
		}
		if time.Now().After(deadline) {
			row, _ := store.find("alice", "2025-03-01")
			t.Fatalf("expected 2 accumulated calls on the stale day, got %+v", row)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := tracker.GetProgress("alice").CallsToday; got != 0 {
		t.Errorf("expected today's counter untouched by stale call, got %d", got)
	}
}

func TestAllSortedByAgent(t *testing.T) {
	tracker, current := newTestTracker(t)

	tracker.RecordCall("charlie", *current)
	tracker.RecordCall("alice", *current)
	tracker.RecordCall("bob", *current)

	entries := tracker.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"alice", "bob", "charlie"}
	for i, entry := range entries {
		if entry.AgentID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], entry.AgentID)
		}
	}
}
