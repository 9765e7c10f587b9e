package performance

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/callcrm/backend/internal/types"
)

// Named report windows. All boundaries are computed in the canonical timezone;
// a window covers [start, end] inclusive.
const (
	RangeToday     = "today"
	RangeYesterday = "yesterday"
	RangeThisWeek  = "this-week"
	RangeLastWeek  = "last-week"
	RangeThisMonth = "this-month"
	RangeLastMonth = "last-month"
)

// ResolveRange maps a named window onto concrete start/end instants
func (a *Aggregator) ResolveRange(name string) (time.Time, time.Time, error) {
	now := a.now().In(a.loc)

	switch name {
	case RangeToday:
		start := startOfDay(now)
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	case RangeYesterday:
		start := startOfDay(now).AddDate(0, 0, -1)
		return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	case RangeThisWeek:
		start, end := a.weekWindow(now, 0)
		return start, end, nil
	case RangeLastWeek:
		start, end := a.weekWindow(now, -1)
		return start, end, nil
	case RangeThisMonth:
		start, end := a.monthWindow(now, 0)
		return start, end, nil
	case RangeLastMonth:
		start, end := a.monthWindow(now, -1)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown range %q", types.ErrValidation, name)
	}
}

// ResolveCustomRange parses explicit YYYY-MM-DD bounds into an inclusive
// window covering both whole days
func (a *Aggregator) ResolveCustomRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid start date %q", types.ErrValidation, startDate)
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, a.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid end date %q", types.ErrValidation, endDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date before start date", types.ErrValidation)
	}
	return start, end.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// weekWindow returns the ISO week (Monday through Sunday) containing now,
// shifted by offset weeks
func (a *Aggregator) weekWindow(now time.Time, offset int) (time.Time, time.Time) {
	now = now.In(a.loc)
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday closes the week
	}
	start := startOfDay(now).AddDate(0, 0, -(weekday-1)+offset*7)
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}

// monthWindow returns the calendar month containing now, shifted by offset
// months
func (a *Aggregator) monthWindow(now time.Time, offset int) (time.Time, time.Time) {
	now = now.In(a.loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, a.loc).AddDate(0, offset, 0)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
