package performance

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/metrics"
	"github.com/dennisdiepolder/callcrm/backend/internal/types"
)

// AssignmentSource provides the assignment view the aggregator reads from
type AssignmentSource interface {
	All() []types.Assignment
	ListCompletedBetween(start, end time.Time) []types.Assignment
}

// ProgressSource provides the daily-progress view the aggregator reads from
type ProgressSource interface {
	All() []types.DailyProgressEntry
	CurrentDayKey() string
}

// AgentPerformance is one agent's roll-up in a team snapshot
type AgentPerformance struct {
	AgentID        string                 `json:"agentId"`
	Pending        int                    `json:"pending"`
	Claimed        int                    `json:"claimed"`
	Called         int                    `json:"called"`
	Completed      int                    `json:"completed"`
	ByCategory     map[types.Category]int `json:"byCategory"`
	CallsToday     int                    `json:"callsToday"`
	Target         int                    `json:"target"`
	AttainmentPct  float64                `json:"attainmentPct"`
	OnTarget       bool                   `json:"onTarget"`
	WeekCompleted  int                    `json:"weekCompleted"`
	MonthCompleted int                    `json:"monthCompleted"`
}

// TeamPerformanceSnapshot is the derived team roll-up. Recomputed on demand,
// never persisted as source of truth.
type TeamPerformanceSnapshot struct {
	Timestamp      time.Time              `json:"timestamp"`
	DayKey         string                 `json:"dayKey"`
	TotalAgents    int                    `json:"totalAgents"`
	TotalPending   int                    `json:"totalPending"`
	TotalCompleted int                    `json:"totalCompleted"`
	TotalTarget    int                    `json:"totalTarget"`
	CompletionPct  int                    `json:"completionPct"`
	OnTargetCount  int                    `json:"onTargetCount"`
	ByCategory     map[types.Category]int `json:"byCategory"`
	Agents         []AgentPerformance     `json:"agents"`
}

// Report is the read-only aggregator output handed to report generation
type Report struct {
	StartDate  string                 `json:"startDate"`
	EndDate    string                 `json:"endDate"`
	Total      int                    `json:"total"`
	ByAgent    map[string]int         `json:"byAgent"`
	ByCategory map[types.Category]int `json:"byCategory"`
	ByOutcome  map[string]int         `json:"byOutcome"`
	Completed  []types.Assignment     `json:"completed"`
}

// Aggregator computes team and agent roll-ups from the assignment set and the
// daily counters. Pure read side; the targets map is its only own state.
type Aggregator struct {
	assignments AssignmentSource
	progress    ProgressSource

	defaultTarget int
	targets       map[string]int
	targetsMu     sync.RWMutex

	loc *time.Location
	now func() time.Time
}

// NewAggregator creates a performance aggregator
func NewAggregator(assignments AssignmentSource, progress ProgressSource, defaultTarget int, loc *time.Location) *Aggregator {
	return &Aggregator{
		assignments:   assignments,
		progress:      progress,
		defaultTarget: defaultTarget,
		targets:       make(map[string]int),
		loc:           loc,
		now:           time.Now,
	}
}

// SafePercentage returns part/total as a percentage, 0 when total is 0.
// Never NaN, never Inf.
func SafePercentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

// SetAgentTarget overrides the daily call target for one agent
func (a *Aggregator) SetAgentTarget(agentID string, target int) error {
	if target < 0 {
		return fmt.Errorf("%w: target must not be negative", types.ErrValidation)
	}
	a.targetsMu.Lock()
	a.targets[agentID] = target
	a.targetsMu.Unlock()
	return nil
}

// TargetFor returns the agent's daily call target
func (a *Aggregator) TargetFor(agentID string) int {
	a.targetsMu.RLock()
	defer a.targetsMu.RUnlock()
	if target, ok := a.targets[agentID]; ok {
		return target
	}
	return a.defaultTarget
}

// TeamSnapshot computes the current team roll-up
func (a *Aggregator) TeamSnapshot() TeamPerformanceSnapshot {
	now := a.now()
	all := a.assignments.All()
	entries := a.progress.All()

	metrics.Get().UpdateAssignmentStats(all)

	callsToday := make(map[string]int, len(entries))
	for _, entry := range entries {
		callsToday[entry.AgentID] = entry.CallsToday
	}

	weekStart, weekEnd := a.weekWindow(now, 0)
	monthStart, monthEnd := a.monthWindow(now, 0)

	perAgent := make(map[string]*AgentPerformance)
	ensure := func(agentID string) *AgentPerformance {
		p, ok := perAgent[agentID]
		if !ok {
			p = &AgentPerformance{
				AgentID:    agentID,
				ByCategory: make(map[types.Category]int),
				Target:     a.TargetFor(agentID),
			}
			perAgent[agentID] = p
		}
		return p
	}

	snapshot := TeamPerformanceSnapshot{
		Timestamp:  now,
		DayKey:     a.progress.CurrentDayKey(),
		ByCategory: make(map[types.Category]int),
	}

	for _, assignment := range all {
		p := ensure(assignment.AgentID)
		p.ByCategory[assignment.Category]++
		snapshot.ByCategory[assignment.Category]++

		switch assignment.State {
		case types.AssignmentPending:
			p.Pending++
			snapshot.TotalPending++
		case types.AssignmentClaimed:
			p.Claimed++
		case types.AssignmentCalled:
			p.Called++
		case types.AssignmentCompleted:
			p.Completed++
			snapshot.TotalCompleted++
			if assignment.CompletedAt != nil {
				at := *assignment.CompletedAt
				if !at.Before(weekStart) && !at.After(weekEnd) {
					p.WeekCompleted++
				}
				if !at.Before(monthStart) && !at.After(monthEnd) {
					p.MonthCompleted++
				}
			}
		}
	}

	// Agents with calls today but no live assignments still appear
	for agentID, count := range callsToday {
		ensure(agentID).CallsToday = count
	}

	// So do idle agents known only through a target override; their target
	// still counts toward the team total
	a.targetsMu.RLock()
	targeted := make([]string, 0, len(a.targets))
	for agentID := range a.targets {
		targeted = append(targeted, agentID)
	}
	a.targetsMu.RUnlock()
	for _, agentID := range targeted {
		ensure(agentID)
	}

	for _, p := range perAgent {
		p.AttainmentPct = SafePercentage(float64(p.CallsToday), float64(p.Target))
		p.OnTarget = p.Target > 0 && p.CallsToday >= p.Target
		if p.OnTarget {
			snapshot.OnTargetCount++
		}
		snapshot.TotalTarget += p.Target
		snapshot.Agents = append(snapshot.Agents, *p)
	}
	sortAgents(snapshot.Agents)

	completedToday := 0
	for _, count := range callsToday {
		completedToday += count
	}
	snapshot.CompletionPct = int(math.Round(SafePercentage(float64(completedToday), float64(snapshot.TotalTarget))))
	snapshot.TotalAgents = len(snapshot.Agents)

	return snapshot
}

// ReportBetween filters completed assignments by completedAt within
// [start, end] inclusive and groups them for report generation. Labeling is
// the caller's business.
func (a *Aggregator) ReportBetween(start, end time.Time) Report {
	completed := a.assignments.ListCompletedBetween(start, end)

	report := Report{
		StartDate:  start.In(a.loc).Format("2006-01-02"),
		EndDate:    end.In(a.loc).Format("2006-01-02"),
		Total:      len(completed),
		ByAgent:    make(map[string]int),
		ByCategory: make(map[types.Category]int),
		ByOutcome:  make(map[string]int),
		Completed:  completed,
	}
	for _, assignment := range completed {
		report.ByAgent[assignment.AgentID]++
		report.ByCategory[assignment.Category]++
		if assignment.Outcome != "" {
			report.ByOutcome[assignment.Outcome]++
		}
	}
	return report
}

func sortAgents(agents []AgentPerformance) {
	sort.Slice(agents, func(i, j int) bool {
		return agents[i].AgentID < agents[j].AgentID
	})
}
