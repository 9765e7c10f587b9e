package assignment

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/lease"
	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/pool"
	"github.com/dennisdiepolder/callcrm/backend/internal/progress"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AssignmentStore is the subset of storage.Store needed by the distributor
type AssignmentStore interface {
	SaveAssignment(record types.AssignmentRecord) error
}

// Distributor hands records out to agents in bulk and drives each assignment
// through its state machine. At most one non-completed assignment exists per
// record; byRecord enforces that.
type Distributor struct {
	assignments map[string]*types.Assignment
	byRecord    map[string]string // recordID -> non-completed assignment id

	pool     *pool.Pool
	leases   *lease.Manager
	progress *progress.Tracker
	store    AssignmentStore
	mu       sync.RWMutex
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDistributor creates a new assignment distributor
func NewDistributor(p *pool.Pool, l *lease.Manager, pr *progress.Tracker, store AssignmentStore, logger zerolog.Logger) *Distributor {
	return &Distributor{
		assignments: make(map[string]*types.Assignment),
		byRecord:    make(map[string]string),
		pool:        p,
		leases:      l,
		progress:    pr,
		store:       store,
		logger:      logger.With().Str("component", "distributor").Logger(),
		now:         time.Now,
	}
}

// Distribute takes up to count available records of the category and creates
// one pending assignment per record owned by the agent. The whole batch is one
// critical section, so two managers can never hand the same record to two
// agents.
func (d *Distributor) Distribute(agentID string, category types.Category, count int) ([]types.Assignment, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id required", types.ErrValidation)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", types.ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.pool.FetchAvailable(category, count)
	if err != nil {
		return nil, err
	}
	if len(records) < count {
		return nil, fmt.Errorf("%w: requested %d records, only %d available", types.ErrValidation, count, len(records))
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}
	if err := d.pool.MarkAssigned(ids); err != nil {
		return nil, err
	}

	now := d.now()
	created := make([]types.Assignment, 0, len(records))
	for _, record := range records {
		a := &types.Assignment{
			ID:         uuid.New().String(),
			RecordID:   record.ID,
			AgentID:    agentID,
			Category:   record.Category,
			State:      types.AssignmentPending,
			AssignedAt: now,
		}
		d.assignments[a.ID] = a
		d.byRecord[record.ID] = a.ID
		created = append(created, *a)
	}

	metrics.Get().RecordAssignmentsCreated(len(created))
	d.logger.Info().
		Str("agent_id", agentID).
		Str("category", string(category)).
		Int("count", len(created)).
		Msg("records distributed")

	return created, nil
}

// Claim acquires the lease on the assignment's record and moves the
// assignment to claimed. Only the owning agent may claim. AlreadyClaimed
// propagates as-is so the caller can surface "in use" and pick another record.
func (d *Distributor) Claim(assignmentID, agentID, agentName string) (*types.Assignment, *types.Lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.mutable(assignmentID, agentID)
	if err != nil {
		return nil, nil, err
	}

	l, err := d.leases.Acquire(a.RecordID, agentID, agentName, 0)
	if err != nil {
		return nil, nil, err
	}

	if a.State == types.AssignmentPending {
		a.State = types.AssignmentClaimed
	}

	assignmentCopy := *a
	return &assignmentCopy, l, nil
}

// MarkCalled records the outcome of a special-purpose call without leaving
// the active pool. The manager-visible notes pane is reviewed before the
// final complete step archives the record.
func (d *Distributor) MarkCalled(assignmentID, agentID, outcome, notes string) (*types.Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.mutable(assignmentID, agentID)
	if err != nil {
		return nil, err
	}
	if a.Category != types.CategorySpecial {
		return nil, fmt.Errorf("%w: mark-called applies only to special-purpose assignments", types.ErrValidation)
	}
	if a.State != types.AssignmentClaimed {
		return nil, fmt.Errorf("%w: assignment must be claimed before mark-called", types.ErrValidation)
	}

	a.State = types.AssignmentCalled
	a.Outcome = outcome
	a.Notes = notes

	assignmentCopy := *a
	return &assignmentCopy, nil
}

// Complete finishes the assignment: records outcome and completion time,
// releases the lease, archives the record and counts the call toward the
// agent's daily progress. A duplicate complete from a retried request fails
// with AlreadyCompleted and never double-counts.
func (d *Distributor) Complete(assignmentID, agentID, outcome, notes string) (*types.Assignment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, err := d.mutable(assignmentID, agentID)
	if err != nil {
		return nil, err
	}

	switch {
	case a.Category == types.CategorySpecial && a.State != types.AssignmentCalled:
		return nil, fmt.Errorf("%w: special-purpose assignments require mark-called before completion", types.ErrValidation)
	case a.Category != types.CategorySpecial && a.State != types.AssignmentClaimed:
		return nil, fmt.Errorf("%w: assignment must be claimed before completion", types.ErrValidation)
	}

	now := d.now()
	a.State = types.AssignmentCompleted
	a.CompletedAt = &now
	if outcome != "" {
		a.Outcome = outcome
	}
	if notes != "" {
		a.Notes = notes
	}

	// The lease may already have expired mid-call; release is a no-op then
	if err := d.leases.Release(a.RecordID, agentID); err != nil {
		d.logger.Warn().Err(err).Str("record_id", a.RecordID).Msg("lease release on completion")
	}
	if err := d.pool.Archive(a.RecordID); err != nil {
		d.logger.Error().Err(err).Str("record_id", a.RecordID).Msg("failed to archive record")
	} else {
		metrics.Get().RecordArchived()
	}

	delete(d.byRecord, a.RecordID)
	d.progress.RecordCall(agentID, now)
	metrics.Get().RecordAssignmentCompleted()
	d.persist(a)

	d.logger.Info().
		Str("assignment_id", a.ID).
		Str("agent_id", agentID).
		Str("outcome", a.Outcome).
		Msg("assignment completed")

	assignmentCopy := *a
	return &assignmentCopy, nil
}

// ForceUnassign deletes a pending or claimed assignment, releases any lease
// and returns the record to the available pool. Manager-only cancellation;
// never valid on a completed assignment.
func (d *Distributor) ForceUnassign(assignmentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.assignments[assignmentID]
	if !ok {
		return fmt.Errorf("%w: assignment %s", types.ErrNotFound, assignmentID)
	}
	if a.State == types.AssignmentCompleted {
		return fmt.Errorf("%w: cannot unassign", types.ErrAlreadyCompleted)
	}

	d.leases.ForceRelease(a.RecordID)
	if err := d.pool.MarkAvailable(a.RecordID); err != nil {
		return err
	}

	delete(d.assignments, assignmentID)
	delete(d.byRecord, a.RecordID)
	metrics.Get().RecordAssignmentCancelled()

	d.logger.Info().
		Str("assignment_id", assignmentID).
		Str("record_id", a.RecordID).
		Str("agent_id", a.AgentID).
		Msg("assignment force-unassigned")

	return nil
}

// Get returns a copy of the assignment
func (d *Distributor) Get(assignmentID string) (types.Assignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.assignments[assignmentID]
	if !ok {
		return types.Assignment{}, fmt.Errorf("%w: assignment %s", types.ErrNotFound, assignmentID)
	}
	return *a, nil
}

// ListByAgent returns the agent's assignments, oldest first
func (d *Distributor) ListByAgent(agentID string) []types.Assignment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]types.Assignment, 0)
	for _, a := range d.assignments {
		if a.AgentID == agentID {
			result = append(result, *a)
		}
	}
	sortAssignments(result)
	return result
}

// All returns a snapshot of every assignment
func (d *Distributor) All() []types.Assignment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]types.Assignment, 0, len(d.assignments))
	for _, a := range d.assignments {
		result = append(result, *a)
	}
	sortAssignments(result)
	return result
}

// ListCompletedBetween returns completed assignments with completedAt within
// [start, end], both endpoints inclusive. Feeds reports and rollups.
func (d *Distributor) ListCompletedBetween(start, end time.Time) []types.Assignment {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]types.Assignment, 0)
	for _, a := range d.assignments {
		if a.State != types.AssignmentCompleted || a.CompletedAt == nil {
			continue
		}
		at := *a.CompletedAt
		if at.Before(start) || at.After(end) {
			continue
		}
		result = append(result, *a)
	}
	sortAssignments(result)
	return result
}

// mutable looks up an assignment and runs the centralized ownership and
// idempotency checks every mutating transition shares. Caller holds the lock.
func (d *Distributor) mutable(assignmentID, agentID string) (*types.Assignment, error) {
	a, ok := d.assignments[assignmentID]
	if !ok {
		return nil, fmt.Errorf("%w: assignment %s", types.ErrNotFound, assignmentID)
	}
	if !canMutate(agentID, a) {
		return nil, fmt.Errorf("%w: assignment %s belongs to %s", types.ErrForbidden, assignmentID, a.AgentID)
	}
	if a.State == types.AssignmentCompleted {
		return nil, fmt.Errorf("%w: assignment %s", types.ErrAlreadyCompleted, assignmentID)
	}
	return a, nil
}

// canMutate is the single authorization predicate for assignment mutations
func canMutate(agentID string, a *types.Assignment) bool {
	return agentID != "" && a.AgentID == agentID
}

// persist writes a completed assignment through to durable storage. Caller
// holds the lock; the write runs detached.
func (d *Distributor) persist(a *types.Assignment) {
	if d.store == nil {
		return
	}
	record := types.AssignmentRecord{
		DateKey:      d.progress.DayKey(*a.CompletedAt),
		AssignmentID: a.ID,
		RecordID:     a.RecordID,
		AgentID:      a.AgentID,
		Category:     a.Category,
		AssignedAt:   a.AssignedAt.Format(time.RFC3339),
		CompletedAt:  a.CompletedAt.Format(time.RFC3339),
		Outcome:      a.Outcome,
		Notes:        a.Notes,
	}
	go func() {
		if err := d.store.SaveAssignment(record); err != nil {
			d.logger.Error().Err(err).Str("assignment_id", record.AssignmentID).Msg("failed to save assignment")
		}
	}()
}

func sortAssignments(assignments []types.Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		if assignments[i].AssignedAt.Equal(assignments[j].AssignedAt) {
			return assignments[i].ID < assignments[j].ID
		}
		return assignments[i].AssignedAt.Before(assignments[j].AssignedAt)
	})
}
