// Package analytics computes completion statistics from the store's tasks.
package analytics

import (
	"slices"

	"github.com/taskpulse/taskpulse/internal/task"
)

const RollupDays = 7

type Stats struct {
	Total     int
	Completed int
	// Pending counts every task that is not completed, in-progress included.
	Pending int
	Streak  int
}

// DayCount is one bar of the weekly rollup.
type DayCount struct {
	DayLabel       string
	CompletedCount int
	Date           Date
}

func ComputeStats(tasks []task.Task, clock Clock) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.IsCompleted() {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	s.Streak = Streak(tasks, clock)
	return s
}

// Streak counts consecutive days with at least one completion, ending today
// or yesterday. A task's completion day is the day of its UpdatedAt.
func Streak(tasks []task.Task, clock Clock) int {
	loc := clock.Location()
	var days []Date
	for _, t := range tasks {
		if t.IsCompleted() {
			days = append(days, DateOf(t.UpdatedAt, loc))
		}
	}
	if len(days) == 0 {
		return 0
	}
	slices.SortFunc(days, func(a, b Date) int { return b.DaysSince(a) })

	// A completion dated tomorrow (clock skew) still counts as recent.
	if gap := Today(clock).DaysSince(days[0]); gap > 1 || gap < -1 {
		return 0
	}
	streak := 1
	cursor := days[0]
	for _, d := range days[1:] {
		switch cursor.DaysSince(d) {
		case 0:
			continue
		case 1:
			streak++
			cursor = d
		default:
			return streak
		}
	}
	return streak
}

// ComputeRollup returns completions per day from six days ago through today.
func ComputeRollup(tasks []task.Task, clock Clock) []DayCount {
	loc := clock.Location()
	today := Today(clock)
	out := make([]DayCount, RollupDays)
	for i := range out {
		d := today.AddDays(i - (RollupDays - 1))
		out[i] = DayCount{DayLabel: d.Weekday().String()[:3], Date: d}
	}
	for _, t := range tasks {
		if !t.IsCompleted() {
			continue
		}
		offset := today.DaysSince(DateOf(t.UpdatedAt, loc))
		if offset < 0 || offset >= RollupDays {
			continue
		}
		out[RollupDays-1-offset].CompletedCount++
	}
	return out
}

// CompletionRate is the completed share in percent, 0 for no tasks.
func CompletionRate(s Stats) int {
	if s.Total == 0 {
		return 0
	}
	return s.Completed * 100 / s.Total
}
