package storage

import "github.com/dennisdiepolder/callcrm/backend/internal/types"

// Store defines the storage interface. The engine is the source of truth for
// live state; the store carries the durable entities and the per-day history
// that outlives a restart.
type Store interface {
	SaveRecord(record types.StoredRecord) error
	SaveAssignment(record types.AssignmentRecord) error
	SaveDailyProgress(record types.DailyProgressRecord) error
	GetAssignmentsByDate(dateKey string) ([]types.AssignmentRecord, error)
	GetAgentDailyProgress(agentID string) ([]types.DailyProgressRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveRecord(_ types.StoredRecord) error               { return nil }
func (s *NoopStore) SaveAssignment(_ types.AssignmentRecord) error       { return nil }
func (s *NoopStore) SaveDailyProgress(_ types.DailyProgressRecord) error { return nil }
func (s *NoopStore) GetAssignmentsByDate(_ string) ([]types.AssignmentRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetAgentDailyProgress(_ string) ([]types.DailyProgressRecord, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
