package types

import "time"

// Category classifies a callable record
type Category string

const (
	CategoryProspect Category = "prospective_client"
	CategoryCustomer Category = "existing_customer"
	CategorySpecial  Category = "special_purpose"
)

// AllCategories returns all defined record categories
var AllCategories = []Category{
	CategoryProspect,
	CategoryCustomer,
	CategorySpecial,
}

// ValidCategory reports whether c is a known category
func ValidCategory(c Category) bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// RecordStatus represents the lifecycle state of a record in the pool
type RecordStatus string

const (
	RecordAvailable RecordStatus = "available"
	RecordAssigned  RecordStatus = "assigned"
	RecordArchived  RecordStatus = "archived"
)

// AssignmentState represents the lifecycle state of an assignment
type AssignmentState string

const (
	// Basic flow
	AssignmentPending   AssignmentState = "pending"
	AssignmentClaimed   AssignmentState = "claimed"
	AssignmentCompleted AssignmentState = "completed"

	// Special-purpose records require a confirmation step between the
	// outcome report and the final archive
	AssignmentCalled AssignmentState = "called"
)

// Record is a callable contact in the pool. Contact data is immutable after
// import; only category and status change.
type Record struct {
	ID         string       `json:"id"`
	Phone      string       `json:"phone"`
	Name       string       `json:"name,omitempty"`
	Email      string       `json:"email,omitempty"`
	Company    string       `json:"company,omitempty"`
	Category   Category     `json:"category"`
	Status     RecordStatus `json:"status"`
	ImportedAt time.Time    `json:"importedAt"`
}

// RecordInput carries the contact data for a bulk import
type RecordInput struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
}

// Assignment binds one record to one agent
type Assignment struct {
	ID          string          `json:"id"`
	RecordID    string          `json:"recordId"`
	AgentID     string          `json:"agentId"`
	Category    Category        `json:"category"`
	State       AssignmentState `json:"state"`
	AssignedAt  time.Time       `json:"assignedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// Lease is a time-bounded exclusive claim on a record. Leases live only in
// memory; losing them on restart is safe because assignment state is owned
// elsewhere.
type Lease struct {
	RecordID   string    `json:"recordId"`
	AgentID    string    `json:"agentId"`
	AgentName  string    `json:"agentName"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the lease is past its TTL at the given instant
func (l *Lease) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// DailyProgressEntry tracks one agent's completed calls for the current day.
// DayKey is always a calendar date in the engine's canonical timezone.
type DailyProgressEntry struct {
	AgentID      string    `json:"agentId"`
	CallsToday   int       `json:"callsToday"`
	LastCallTime time.Time `json:"lastCallTime"`
	DayKey       string    `json:"dayKey"`
}

// DailyProgressRecord is a persisted per-agent, per-day progress row
type DailyProgressRecord struct {
	AgentID      string `json:"agentId" dynamodbav:"AgentID"` // partition key
	DayKey       string `json:"dayKey" dynamodbav:"DayKey"`   // YYYY-MM-DD (sort key)
	CallsTotal   int    `json:"callsTotal" dynamodbav:"CallsTotal"`
	LastCallTime string `json:"lastCallTime" dynamodbav:"LastCallTime"` // RFC3339
}

// AssignmentRecord is a persisted completed assignment for reporting
type AssignmentRecord struct {
	DateKey      string   `json:"dateKey" dynamodbav:"DateKey"`           // YYYY-MM-DD (partition key)
	AssignmentID string   `json:"assignmentId" dynamodbav:"AssignmentID"` // sort key
	RecordID     string   `json:"recordId" dynamodbav:"RecordID"`
	AgentID      string   `json:"agentId" dynamodbav:"AgentID"`
	Category     Category `json:"category" dynamodbav:"Category"`
	AssignedAt   string   `json:"assignedAt" dynamodbav:"AssignedAt"`   // RFC3339
	CompletedAt  string   `json:"completedAt" dynamodbav:"CompletedAt"` // RFC3339
	Outcome      string   `json:"outcome" dynamodbav:"Outcome"`
	Notes        string   `json:"notes" dynamodbav:"Notes"`
}

// StoredRecord is the persisted shape of a pool record
type StoredRecord struct {
	Category   Category     `json:"category" dynamodbav:"Category"` // partition key
	RecordID   string       `json:"recordId" dynamodbav:"RecordID"` // sort key
	Phone      string       `json:"phone" dynamodbav:"Phone"`
	Name       string       `json:"name" dynamodbav:"Name"`
	Email      string       `json:"email" dynamodbav:"Email"`
	Company    string       `json:"company" dynamodbav:"Company"`
	Status     RecordStatus `json:"status" dynamodbav:"Status"`
	ImportedAt string       `json:"importedAt" dynamodbav:"ImportedAt"` // RFC3339
}
