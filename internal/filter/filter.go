// Package filter derives the list view from the store's tasks.
package filter

import (
	"strings"

	"github.com/taskpulse/taskpulse/internal/task"
)

type Mode int

const (
	// ModeActive hides completed tasks no matter what StatusFilter says.
	ModeActive Mode = iota
	// ModeCompletedOnly shows completed tasks only and ignores StatusFilter.
	ModeCompletedOnly
)

func (m Mode) String() string {
	if m == ModeCompletedOnly {
		return "completed-only"
	}
	return "active"
}

// Criteria are the list view controls. Empty fields match everything.
type Criteria struct {
	SearchTerm     string
	StatusFilter   string
	PriorityFilter string
	Mode           Mode
}

func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// HasActiveFilters reports whether the user narrowed the list beyond the mode,
// which decides between the "no match" and "no tasks" empty states.
func HasActiveFilters(c Criteria) bool {
	statusNarrows := c.Mode == ModeActive && c.StatusFilter != ""
	return strings.TrimSpace(c.SearchTerm) != "" || statusNarrows || c.PriorityFilter != ""
}

// Apply returns the tasks matching c in their input order. The result never
// aliases tasks.
func Apply(tasks []task.Task, c Criteria) []task.Task {
	term := strings.ToLower(strings.TrimSpace(c.SearchTerm))
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, c, term) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t task.Task, c Criteria, term string) bool {
	switch c.Mode {
	case ModeCompletedOnly:
		if t.Status != task.StatusCompleted {
			return false
		}
	default:
		if t.Status == task.StatusCompleted {
			return false
		}
		if c.StatusFilter != "" && !strings.EqualFold(string(t.Status), c.StatusFilter) {
			return false
		}
	}
	if c.PriorityFilter != "" && !strings.EqualFold(string(t.Priority), c.PriorityFilter) {
		return false
	}
	if term == "" {
		return true
	}
	for _, field := range []string{t.Title, t.Description, string(t.Status), string(t.Priority)} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
