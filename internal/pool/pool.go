package pool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RecordStore is the subset of storage.Store needed by the pool
type RecordStore interface {
	SaveRecord(record types.StoredRecord) error
}

// Pool is the authoritative collection of callable records. Records enter via
// bulk import, are handed out oldest-first, and leave by archiving.
type Pool struct {
	records      map[string]*types.Record
	order        map[types.Category][]string // record ids in import order
	reservations map[string]time.Time        // recordID -> reservation expiry

	reservationTTL time.Duration
	store          RecordStore
	mu             sync.RWMutex
	logger         zerolog.Logger
	now            func() time.Time
}

// NewPool creates a new record pool. reservationTTL guards records that were
// fetched but never marked assigned (a crashed caller) from being stuck.
func NewPool(reservationTTL time.Duration, store RecordStore, logger zerolog.Logger) *Pool {
	return &Pool{
		records:        make(map[string]*types.Record),
		order:          make(map[types.Category][]string),
		reservations:   make(map[string]time.Time),
		reservationTTL: reservationTTL,
		store:          store,
		logger:         logger.With().Str("component", "pool").Logger(),
		now:            time.Now,
	}
}

// Import creates available records from the given contact data and returns
// their fresh ids in input order.
func (p *Pool) Import(category types.Category, inputs []types.RecordInput) ([]string, error) {
	if !types.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", types.ErrValidation, category)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no records to import", types.ErrValidation)
	}
	for i, in := range inputs {
		if in.Phone == "" {
			return nil, fmt.Errorf("%w: record %d has no phone number", types.ErrValidation, i)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		record := &types.Record{
			ID:         uuid.New().String(),
			Phone:      in.Phone,
			Name:       in.Name,
			Email:      in.Email,
			Company:    in.Company,
			Category:   category,
			Status:     types.RecordAvailable,
			ImportedAt: now,
		}
		p.records[record.ID] = record
		p.order[category] = append(p.order[category], record.ID)
		ids = append(ids, record.ID)
		p.persist(record)
	}

	p.logger.Info().
		Str("category", string(category)).
		Int("imported", len(ids)).
		Msg("records imported")

	return ids, nil
}

// FetchAvailable returns up to limit available records of the category,
// oldest-imported first. Returned records carry a short internal reservation
// so two concurrent fetches never hand out the same record; the reservation
// expires on its own if the caller never marks them assigned.
func (p *Pool) FetchAvailable(category types.Category, limit int) ([]types.Record, error) {
	if !types.ValidCategory(category) {
		return nil, fmt.Errorf("%w: unknown category %q", types.ErrValidation, category)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", types.ErrValidation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	result := make([]types.Record, 0, limit)
	for _, id := range p.order[category] {
		if len(result) >= limit {
			break
		}
		record := p.records[id]
		if record.Status != types.RecordAvailable {
			continue
		}
		if expiry, reserved := p.reservations[id]; reserved && expiry.After(now) {
			continue
		}
		p.reservations[id] = now.Add(p.reservationTTL)
		result = append(result, *record)
	}

	return result, nil
}

// MarkAssigned transitions records out of the available pool. Fails with
// NotFound on the first unknown id without touching any record.
func (p *Pool) MarkAssigned(ids []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range ids {
		if _, ok := p.records[id]; !ok {
			return fmt.Errorf("%w: record %s", types.ErrNotFound, id)
		}
	}

	for _, id := range ids {
		record := p.records[id]
		record.Status = types.RecordAssigned
		delete(p.reservations, id)
		p.persist(record)
	}
	return nil
}

// MarkAvailable returns a record to the available pool, keeping its original
// import position. Used when an assignment is force-unassigned.
func (p *Pool) MarkAvailable(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", types.ErrNotFound, id)
	}
	record.Status = types.RecordAvailable
	delete(p.reservations, id)
	p.persist(record)
	return nil
}

// Archive removes a record from circulation permanently
func (p *Pool) Archive(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.records[id]
	if !ok {
		return fmt.Errorf("%w: record %s", types.ErrNotFound, id)
	}
	record.Status = types.RecordArchived
	delete(p.reservations, id)
	p.persist(record)
	return nil
}

// Get returns a copy of the record with the given id
func (p *Pool) Get(id string) (types.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	record, ok := p.records[id]
	if !ok {
		return types.Record{}, fmt.Errorf("%w: record %s", types.ErrNotFound, id)
	}
	return *record, nil
}

// CountAvailable returns the number of available records per category
func (p *Pool) CountAvailable() map[types.Category]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	counts := make(map[types.Category]int, len(types.AllCategories))
	for _, record := range p.records {
		if record.Status == types.RecordAvailable {
			counts[record.Category]++
		}
	}
	return counts
}

// All returns a snapshot of every record, oldest-imported first
func (p *Pool) All() []types.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	records := make([]types.Record, 0, len(p.records))
	for _, record := range p.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ImportedAt.Before(records[j].ImportedAt)
	})
	return records
}

// persist writes the record through to durable storage. Caller holds the lock;
// the write itself runs detached so a slow store never blocks the pool.
func (p *Pool) persist(record *types.Record) {
	if p.store == nil {
		return
	}
	stored := types.StoredRecord{
		Category:   record.Category,
		RecordID:   record.ID,
		Phone:      record.Phone,
		Name:       record.Name,
		Email:      record.Email,
		Company:    record.Company,
		Status:     record.Status,
		ImportedAt: record.ImportedAt.Format(time.RFC3339),
	}
	go func() {
		if err := p.store.SaveRecord(stored); err != nil {
			p.logger.Error().Err(err).Str("record_id", stored.RecordID).Msg("failed to save record")
		}
	}()
}
