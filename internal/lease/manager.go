package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/rs/zerolog"
)

// Manager grants, renews and expires exclusive claims on records. The lease
// table lives only in memory: a restart simply drops all leases and agents
// re-acquire, assignment state is untouched.
type Manager struct {
	leases     map[string]*entry // recordID -> live or expired lease
	defaultTTL time.Duration
	mu         sync.Mutex
	logger     zerolog.Logger
	now        func() time.Time
}

// entry keeps the per-lease TTL so renewals extend by the duration the
// holder originally asked for
type entry struct {
	lease types.Lease
	ttl   time.Duration
}

// NewManager creates a new lease manager
func NewManager(defaultTTL time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		leases:     make(map[string]*entry),
		defaultTTL: defaultTTL,
		logger:     logger.With().Str("component", "lease").Logger(),
		now:        time.Now,
	}
}

// Acquire claims the record for the agent. Exactly one of two racing callers
// succeeds; the loser gets AlreadyClaimed and must not retry automatically.
// An expired lease never blocks a new acquire. Re-acquiring a record the agent
// already holds refreshes the expiry.
func (m *Manager) Acquire(recordID, agentID, agentName string, ttl time.Duration) (*types.Lease, error) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.leases[recordID]; ok && !existing.lease.Expired(now) {
		if existing.lease.AgentID != agentID {
			// Expected contention, surfaced as UI state rather than logged
			// as a fault
			m.logger.Debug().
				Str("record_id", recordID).
				Str("holder", existing.lease.AgentID).
				Str("requester", agentID).
				Msg("lease contention")
			metrics.Get().RecordLeaseContended()
			return nil, fmt.Errorf("%w: held by %s", types.ErrAlreadyClaimed, existing.lease.AgentName)
		}
		existing.ttl = ttl
		existing.lease.ExpiresAt = now.Add(ttl)
		leaseCopy := existing.lease
		return &leaseCopy, nil
	}

	e := &entry{
		lease: types.Lease{
			RecordID:   recordID,
			AgentID:    agentID,
			AgentName:  agentName,
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		},
		ttl: ttl,
	}
	m.leases[recordID] = e
	metrics.Get().RecordLeaseAcquired()

	m.logger.Debug().
		Str("record_id", recordID).
		Str("agent_id", agentID).
		Time("expires_at", e.lease.ExpiresAt).
		Msg("lease acquired")

	leaseCopy := e.lease
	return &leaseCopy, nil
}

// Renew extends the lease by its original TTL. Only the current holder may
// renew; a lease that already expired cannot be renewed, only re-acquired.
func (m *Manager) Renew(recordID, agentID string) (*types.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.leases[recordID]
	if !ok || existing.lease.Expired(now) {
		return nil, fmt.Errorf("%w: no live lease on record %s", types.ErrNotHolder, recordID)
	}
	if existing.lease.AgentID != agentID {
		return nil, fmt.Errorf("%w: record %s held by %s", types.ErrNotHolder, recordID, existing.lease.AgentName)
	}

	existing.lease.ExpiresAt = now.Add(existing.ttl)
	leaseCopy := existing.lease
	return &leaseCopy, nil
}

// Release drops the agent's lease. Releasing a lease that already expired or
// was already released is a no-op, not an error, so completion paths can
// release unconditionally.
func (m *Manager) Release(recordID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.leases[recordID]
	if !ok || existing.lease.Expired(m.now()) {
		delete(m.leases, recordID)
		return nil
	}
	if existing.lease.AgentID != agentID {
		return fmt.Errorf("%w: record %s held by %s", types.ErrNotHolder, recordID, existing.lease.AgentName)
	}

	delete(m.leases, recordID)
	m.logger.Debug().
		Str("record_id", recordID).
		Str("agent_id", agentID).
		Msg("lease released")
	return nil
}

// ForceRelease drops whatever lease exists on the record regardless of holder.
// Manager-initiated cancellation path.
func (m *Manager) ForceRelease(recordID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, recordID)
}

// IsClaimed reports whether a live lease exists for the record
func (m *Manager) IsClaimed(recordID string) bool {
	return m.ClaimInfo(recordID) != nil
}

// IsClaimedByMe reports whether the agent holds a live lease on the record
func (m *Manager) IsClaimedByMe(recordID, agentID string) bool {
	info := m.ClaimInfo(recordID)
	return info != nil && info.AgentID == agentID
}

// ClaimInfo returns the live lease on the record, or nil if none. Drives the
// "in use by X" vs "you are calling this" UI states.
func (m *Manager) ClaimInfo(recordID string) *types.Lease {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.leases[recordID]
	if !ok || existing.lease.Expired(m.now()) {
		return nil
	}
	leaseCopy := existing.lease
	return &leaseCopy
}

// Snapshot returns all live leases
func (m *Manager) Snapshot() []types.Lease {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	leases := make([]types.Lease, 0, len(m.leases))
	for _, e := range m.leases {
		if !e.lease.Expired(now) {
			leases = append(leases, e.lease)
		}
	}
	return leases
}

// Sweep removes expired leases and returns how many were reclaimed. Expiry is
// silent: the dropped agent loses exclusivity and must re-acquire, nobody gets
// an error.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for recordID, e := range m.leases {
		if e.lease.Expired(now) {
			delete(m.leases, recordID)
			removed++
			m.logger.Debug().
				Str("record_id", recordID).
				Str("agent_id", e.lease.AgentID).
				Msg("lease expired")
		}
	}
	return removed
}

// Start runs the periodic expiry sweep until the context is cancelled
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("lease sweep started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("lease sweep stopped")
			return

		case <-ticker.C:
			removed := m.Sweep()
			metrics.Get().RecordSweepCycle(removed)
			if removed > 0 {
				m.logger.Info().Int("expired", removed).Msg("stale leases reclaimed")
			}
		}
	}
}
