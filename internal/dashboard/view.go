// Package dashboard keeps the list, board and analytics views in step with
// the task store.
package dashboard

import (
	"sync"

	"github.com/taskpulse/taskpulse/internal/analytics"
	"github.com/taskpulse/taskpulse/internal/board"
	"github.com/taskpulse/taskpulse/internal/filter"
	"github.com/taskpulse/taskpulse/internal/store"
	"github.com/taskpulse/taskpulse/internal/task"
)

type EmptyState int

const (
	EmptyNone EmptyState = iota
	// EmptyNoTasks: the user has no tasks in the current mode.
	EmptyNoTasks
	// EmptyNoMatch: tasks exist but the filters hide all of them.
	EmptyNoMatch
)

func (e EmptyState) Message() string {
	switch e {
	case EmptyNoTasks:
		return "No tasks found"
	case EmptyNoMatch:
		return "No items match your filters"
	default:
		return ""
	}
}

// State is every derived view computed from one store snapshot.
type State struct {
	Version  uint64
	Status   store.Status
	Err      error
	Criteria filter.Criteria

	List       []task.Task
	Board      board.Board
	Stats      analytics.Stats
	Rollup     []analytics.DayCount
	EmptyState EmptyState
}

type Source interface {
	Snapshot() store.Snapshot
	Subscribe(fn store.Observer) string
	Unsubscribe(id string)
}

// View recomputes State inside the store's change notification, so it never
// shows a task the store no longer holds.
type View struct {
	src   Source
	clock analytics.Clock

	mu       sync.RWMutex
	criteria filter.Criteria
	state    State
	subID    string
}

func New(src Source, clock analytics.Clock) *View {
	v := &View{src: src, clock: clock}
	v.subID = src.Subscribe(v.onChange)
	v.onChange(src.Snapshot())
	return v
}

// Close stops following the store.
func (v *View) Close() {
	v.src.Unsubscribe(v.subID)
}

func (v *View) Current() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

func (v *View) Criteria() filter.Criteria {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.criteria
}

// SetCriteria changes the list controls and recomputes at once.
func (v *View) SetCriteria(c filter.Criteria) State {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.criteria = c
	v.state = v.compute(v.src.Snapshot(), c)
	return v.state
}

func (v *View) onChange(snap store.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if snap.Version < v.state.Version {
		return
	}
	v.state = v.compute(snap, v.criteria)
}

func (v *View) compute(snap store.Snapshot, c filter.Criteria) State {
	st := State{
		Version:  snap.Version,
		Status:   snap.Status,
		Err:      snap.Err,
		Criteria: c,
		List:     []task.Task{},
		Board:    board.Partition(nil, board.VisibleColumns(c.Mode)),
		Rollup:   analytics.ComputeRollup(nil, v.clock),
	}
	if !snap.Readable() {
		return st
	}
	st.List = filter.Apply(snap.Tasks, c)
	st.Board = board.Partition(st.List, board.VisibleColumns(c.Mode))
	st.Stats = analytics.ComputeStats(snap.Tasks, v.clock)
	st.Rollup = analytics.ComputeRollup(snap.Tasks, v.clock)
	if len(st.List) == 0 {
		st.EmptyState = EmptyNoTasks
		if filter.HasActiveFilters(c) {
			st.EmptyState = EmptyNoMatch
		}
	}
	return st
}
