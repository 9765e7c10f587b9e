package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Record pool metrics
	RecordsImportedTotal int64
	RecordsArchivedTotal int64

	// Lease metrics
	LeasesAcquiredTotal  int64
	LeasesContendedTotal int64
	LeasesExpiredTotal   int64
	SweepCyclesTotal     int64

	// Assignment metrics
	AssignmentsCreatedTotal   int64
	AssignmentsCompletedTotal int64
	AssignmentsCancelledTotal int64

	// Daily progress metrics
	CallsRecordedTotal int64
	DayResetsTotal     int64

	// Broadcast metrics
	SnapshotsBroadcastTotal int64
	BroadcastErrorsTotal    int64

	// Current distribution, refreshed by the aggregator
	assignmentsByState    map[types.AssignmentState]int
	assignmentsByCategory map[types.Category]int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			assignmentsByState:    make(map[types.AssignmentState]int),
			assignmentsByCategory: make(map[types.Category]int),
			httpRequestsTotal:     make(map[string]map[int]int64),
			startTime:             time.Now(),
		}
	})
	return instance
}

// RecordImported counts freshly imported records
func (m *Metrics) RecordImported(count int) {
	m.mu.Lock()
	m.RecordsImportedTotal += int64(count)
	m.mu.Unlock()
}

// RecordArchived counts a record leaving circulation
func (m *Metrics) RecordArchived() {
	m.mu.Lock()
	m.RecordsArchivedTotal++
	m.mu.Unlock()
}

// RecordLeaseAcquired counts a successful lease acquire
func (m *Metrics) RecordLeaseAcquired() {
	m.mu.Lock()
	m.LeasesAcquiredTotal++
	m.mu.Unlock()
}

// RecordLeaseContended counts an acquire rejected with AlreadyClaimed
func (m *Metrics) RecordLeaseContended() {
	m.mu.Lock()
	m.LeasesContendedTotal++
	m.mu.Unlock()
}

// RecordSweepCycle records an expiry sweep and how many leases it reclaimed
func (m *Metrics) RecordSweepCycle(expired int) {
	m.mu.Lock()
	m.SweepCyclesTotal++
	m.LeasesExpiredTotal += int64(expired)
	m.mu.Unlock()
}

// RecordAssignmentsCreated counts a distribution batch
func (m *Metrics) RecordAssignmentsCreated(count int) {
	m.mu.Lock()
	m.AssignmentsCreatedTotal += int64(count)
	m.mu.Unlock()
}

// RecordAssignmentCompleted counts a completed assignment
func (m *Metrics) RecordAssignmentCompleted() {
	m.mu.Lock()
	m.AssignmentsCompletedTotal++
	m.mu.Unlock()
}

// RecordAssignmentCancelled counts a force-unassigned assignment
func (m *Metrics) RecordAssignmentCancelled() {
	m.mu.Lock()
	m.AssignmentsCancelledTotal++
	m.mu.Unlock()
}

// RecordCallCounted counts a daily-progress increment
func (m *Metrics) RecordCallCounted() {
	m.mu.Lock()
	m.CallsRecordedTotal++
	m.mu.Unlock()
}

// RecordDayReset counts a day rollover
func (m *Metrics) RecordDayReset() {
	m.mu.Lock()
	m.DayResetsTotal++
	m.mu.Unlock()
}

// RecordSnapshotBroadcast counts a dashboard snapshot push
func (m *Metrics) RecordSnapshotBroadcast() {
	m.mu.Lock()
	m.SnapshotsBroadcastTotal++
	m.mu.Unlock()
}

// RecordBroadcastError counts a failed snapshot push
func (m *Metrics) RecordBroadcastError() {
	m.mu.Lock()
	m.BroadcastErrorsTotal++
	m.mu.Unlock()
}

// UpdateAssignmentStats refreshes the assignment distribution gauges
func (m *Metrics) UpdateAssignmentStats(assignments []types.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assignmentsByState = make(map[types.AssignmentState]int)
	m.assignmentsByCategory = make(map[types.Category]int)
	for _, a := range assignments {
		m.assignmentsByState[a.State]++
		m.assignmentsByCategory[a.Category]++
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("callcrm_uptime_seconds", time.Since(m.startTime).Seconds())

		// Record pool metrics
		write("callcrm_records_imported_total", m.RecordsImportedTotal)
		write("callcrm_records_archived_total", m.RecordsArchivedTotal)

		// Lease metrics
		write("callcrm_leases_acquired_total", m.LeasesAcquiredTotal)
		write("callcrm_leases_contended_total", m.LeasesContendedTotal)
		write("callcrm_leases_expired_total", m.LeasesExpiredTotal)
		write("callcrm_lease_sweep_cycles_total", m.SweepCyclesTotal)

		// Assignment metrics
		write("callcrm_assignments_created_total", m.AssignmentsCreatedTotal)
		write("callcrm_assignments_completed_total", m.AssignmentsCompletedTotal)
		write("callcrm_assignments_cancelled_total", m.AssignmentsCancelledTotal)

		// Daily progress metrics
		write("callcrm_calls_recorded_total", m.CallsRecordedTotal)
		write("callcrm_day_resets_total", m.DayResetsTotal)

		// Broadcast metrics
		write("callcrm_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("callcrm_broadcast_errors_total", m.BroadcastErrorsTotal)

		// Assignments by state
		for state, count := range m.assignmentsByState {
			write("callcrm_assignments_by_state", count, "state", string(state))
		}

		// Assignments by category
		for category, count := range m.assignmentsByCategory {
			write("callcrm_assignments_by_category", count, "category", string(category))
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("callcrm_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
