// Package board partitions tasks into status columns and turns drops between
// columns into status updates.
package board

import (
	"slices"

	"github.com/taskpulse/taskpulse/internal/filter"
	"github.com/taskpulse/taskpulse/internal/task"
)

// Column holds the tasks of one status, in list order.
type Column struct {
	Status task.Status
	Title  string
	Tasks  []task.Task
}

// Board is the visible columns in canonical status order.
type Board struct {
	Columns []Column
}

// Count is the number of tasks across all columns.
func (b Board) Count() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// Column returns the column for status, if it is visible.
func (b Board) Column(status task.Status) (Column, bool) {
	for _, c := range b.Columns {
		if c.Status == status {
			return c, true
		}
	}
	return Column{}, false
}

// VisibleColumns is the column set shown for a list mode.
func VisibleColumns(mode filter.Mode) []task.Status {
	if mode == filter.ModeCompletedOnly {
		return []task.Status{task.StatusCompleted}
	}
	return []task.Status{task.StatusPending, task.StatusInProgress}
}

// Partition groups tasks by status into the visible columns. Columns follow
// the canonical status order whatever the order of visible; tasks keep their
// input order and tasks in hidden statuses are left out.
func Partition(tasks []task.Task, visible []task.Status) Board {
	var b Board
	index := make(map[task.Status]int, len(task.Statuses))
	for _, st := range task.Statuses {
		if !slices.Contains(visible, st) {
			continue
		}
		index[st] = len(b.Columns)
		b.Columns = append(b.Columns, Column{Status: st, Title: st.Title(), Tasks: []task.Task{}})
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			b.Columns[i].Tasks = append(b.Columns[i].Tasks, t)
		}
	}
	return b
}
