package progress

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/rs/zerolog"
)

// DayKeyFormat is the calendar-date layout used for all daily keys
const DayKeyFormat = "2006-01-02"

// ProgressStore is the subset of storage.Store needed by the tracker
type ProgressStore interface {
	SaveDailyProgress(record types.DailyProgressRecord) error
}

// Tracker accumulates per-agent call counts for the current calendar day in a
// single canonical timezone. Both the server tick and every request-path check
// funnel into CheckReset, so running the rollover twice in one day is a no-op.
type Tracker struct {
	entries      map[string]*types.DailyProgressEntry
	previous     map[string]*types.DailyProgressEntry // yesterday's final entries, kept for boundary increments
	offDay       map[string]*types.DailyProgressEntry // keyed agentID|dayKey; running totals for far-off days
	lastResetDay string
	previousDay  string

	loc    *time.Location
	store  ProgressStore
	mu     sync.Mutex
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a daily progress tracker keyed to the given timezone
func NewTracker(loc *time.Location, store ProgressStore, logger zerolog.Logger) *Tracker {
	t := &Tracker{
		entries:  make(map[string]*types.DailyProgressEntry),
		previous: make(map[string]*types.DailyProgressEntry),
		offDay:   make(map[string]*types.DailyProgressEntry),
		loc:      loc,
		store:    store,
		logger:   logger.With().Str("component", "progress").Logger(),
		now:      time.Now,
	}
	t.lastResetDay = t.DayKey(t.now())
	return t
}

// DayKey returns the canonical calendar-day key for the given instant
func (t *Tracker) DayKey(at time.Time) string {
	return at.In(t.loc).Format(DayKeyFormat)
}

// CurrentDayKey returns the engine's current dayKey
func (t *Tracker) CurrentDayKey() string {
	return t.DayKey(t.now())
}

// RecordCall increments the agent's counter for the day the call is
// timestamped in. A call timestamped just before midnight that arrives after
// the rollover still lands on its own day, never today's.
func (t *Tracker) RecordCall(agentID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkResetLocked()
	metrics.Get().RecordCallCounted()

	day := t.DayKey(at)
	switch day {
	case t.lastResetDay:
		entry := t.entryLocked(agentID)
		entry.CallsToday++
		entry.LastCallTime = at
		t.persist(*entry)

	case t.previousDay:
		// Landed exactly on the rollover boundary: apply to the finished day
		prev, ok := t.previous[agentID]
		if !ok {
			prev = &types.DailyProgressEntry{AgentID: agentID, DayKey: day}
			t.previous[agentID] = prev
		}
		prev.CallsToday++
		prev.LastCallTime = at
		t.persist(*prev)

	default:
		// A clock this far off is a caller bug; count it on its own day in
		// storage so the completion is not lost. The store overwrites per
		// (agent, day), so the running total is kept here and persisted whole.
		t.logger.Warn().
			Str("agent_id", agentID).
			Str("day", day).
			Str("current_day", t.lastResetDay).
			Msg("call timestamped outside current and previous day")
		key := agentID + "|" + day
		entry, ok := t.offDay[key]
		if !ok {
			entry = &types.DailyProgressEntry{AgentID: agentID, DayKey: day}
			t.offDay[key] = entry
		}
		entry.CallsToday++
		entry.LastCallTime = at
		t.persist(*entry)
	}
}

// GetProgress returns the agent's entry for the current day. Agents with no
// completed calls today get a zero entry, never a stale one.
func (t *Tracker) GetProgress(agentID string) types.DailyProgressEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkResetLocked()
	if entry, ok := t.entries[agentID]; ok {
		return *entry
	}
	return types.DailyProgressEntry{AgentID: agentID, DayKey: t.lastResetDay}
}

// All returns every agent's entry for the current day, sorted by agent id
func (t *Tracker) All() []types.DailyProgressEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkResetLocked()
	entries := make([]types.DailyProgressEntry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AgentID < entries[j].AgentID
	})
	return entries
}

// CheckReset zeroes every entry when the calendar day has changed since the
// last reset. Safe to call from any number of triggers; idempotent within a
// day.
func (t *Tracker) CheckReset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkResetLocked()
}

// checkResetLocked performs the rollover. Caller holds the lock.
func (t *Tracker) checkResetLocked() {
	today := t.DayKey(t.now())
	if today == t.lastResetDay {
		return
	}

	// Persist final totals for the finished day before zeroing
	for _, entry := range t.entries {
		if entry.CallsToday > 0 {
			t.persist(*entry)
		}
	}

	t.previous = t.entries
	t.previousDay = t.lastResetDay
	t.entries = make(map[string]*types.DailyProgressEntry, len(t.previous))
	t.lastResetDay = today
	metrics.Get().RecordDayReset()

	t.logger.Info().
		Str("day", today).
		Int("agents_reset", len(t.previous)).
		Msg("daily progress reset")
}

// entryLocked returns the agent's entry for the current day, creating it if
// needed. Caller holds the lock.
func (t *Tracker) entryLocked(agentID string) *types.DailyProgressEntry {
	entry, ok := t.entries[agentID]
	if !ok {
		entry = &types.DailyProgressEntry{AgentID: agentID, DayKey: t.lastResetDay}
		t.entries[agentID] = entry
	}
	return entry
}

// persist writes the entry through to durable storage for week/month history.
// Runs detached so a slow store never blocks an increment.
func (t *Tracker) persist(entry types.DailyProgressEntry) {
	if t.store == nil {
		return
	}
	record := types.DailyProgressRecord{
		AgentID:      entry.AgentID,
		DayKey:       entry.DayKey,
		CallsTotal:   entry.CallsToday,
		LastCallTime: entry.LastCallTime.Format(time.RFC3339),
	}
	go func() {
		if err := t.store.SaveDailyProgress(record); err != nil {
			t.logger.Error().Err(err).Str("agent_id", record.AgentID).Msg("failed to save daily progress")
		}
	}()
}

// Start runs the server-side reset tick until the context is cancelled. The
// request-path checks cover interactive hours; this tick covers idle ones.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", interval).Str("timezone", t.loc.String()).Msg("reset check started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("reset check stopped")
			return

		case <-ticker.C:
			t.CheckReset()
		}
	}
}
