package board

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpulse/taskpulse/internal/filter"
	"github.com/taskpulse/taskpulse/internal/store"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
)

func mk(id string, status task.Status) task.Task {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return task.Task{ID: id, Title: id, Description: id, Status: status, Priority: task.PriorityLow, CreatedAt: at, UpdatedAt: at}
}

func ids(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestPartition(t *testing.T) {
	tasks := []task.Task{
		mk("a", task.StatusCompleted),
		mk("b", task.StatusPending),
		mk("c", task.StatusInProgress),
		mk("d", task.StatusPending),
	}

	b := Partition(tasks, []task.Status{task.StatusInProgress, task.StatusPending})
	require.Len(t, b.Columns, 2)
	assert.Equal(t, task.StatusPending, b.Columns[0].Status, "canonical column order")
	assert.Equal(t, "Pending", b.Columns[0].Title)
	assert.Equal(t, []string{"b", "d"}, ids(b.Columns[0].Tasks))
	assert.Equal(t, "In Progress", b.Columns[1].Title)
	assert.Equal(t, []string{"c"}, ids(b.Columns[1].Tasks))
	assert.Equal(t, 3, b.Count())

	_, ok := b.Column(task.StatusCompleted)
	assert.False(t, ok, "hidden statuses do not leak into other columns")

	done := Partition(tasks, VisibleColumns(filter.ModeCompletedOnly))
	col, ok := done.Column(task.StatusCompleted)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, ids(col.Tasks))
}

func TestPartition_EmptyColumnsAreNotNil(t *testing.T) {
	b := Partition(nil, task.Statuses)
	require.Len(t, b.Columns, 3)
	for _, c := range b.Columns {
		assert.NotNil(t, c.Tasks)
		assert.Empty(t, c.Tasks)
	}
	assert.Empty(t, Partition(nil, nil).Columns)
}

func TestVisibleColumns(t *testing.T) {
	assert.Equal(t, []task.Status{task.StatusPending, task.StatusInProgress}, VisibleColumns(filter.ModeActive))
	assert.Equal(t, []task.Status{task.StatusCompleted}, VisibleColumns(filter.ModeCompletedOnly))
}

func TestPartition_DisjointCover(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for round := range 200 {
		var tasks []task.Task
		for i := range rng.IntN(15) {
			tasks = append(tasks, mk(fmt.Sprintf("%d-%d", round, i), task.Statuses[rng.IntN(3)]))
		}
		var visible []task.Status
		for _, st := range task.Statuses {
			if rng.IntN(2) == 0 {
				visible = append(visible, st)
			}
		}

		b := Partition(tasks, visible)
		want := 0
		for _, tk := range tasks {
			for _, st := range visible {
				if tk.Status == st {
					want++
				}
			}
		}
		assert.Equal(t, want, b.Count())

		seen := map[string]int{}
		for _, c := range b.Columns {
			for _, tk := range c.Tasks {
				assert.Equal(t, c.Status, tk.Status)
				seen[tk.ID]++
			}
		}
		for id, n := range seen {
			assert.Equal(t, 1, n, "task %s in more than one column", id)
		}
	}
}

// fakeUpdater mimics the store: it holds tasks and applies patches.
type fakeUpdater struct {
	tasks   []task.Task
	updates int
	err     error
}

func (f *fakeUpdater) Snapshot() store.Snapshot {
	return store.Snapshot{Status: store.StatusReady, Tasks: f.tasks}
}

func (f *fakeUpdater) Update(_ context.Context, id string, p task.Patch) (task.Task, error) {
	f.updates++
	if f.err != nil {
		return task.Task{}, f.err
	}
	next := make([]task.Task, len(f.tasks))
	copy(next, f.tasks)
	for i := range next {
		if next[i].ID == id {
			p.Apply(&next[i])
			f.tasks = next
			return next[i], nil
		}
	}
	return task.Task{}, task.NotFoundError(id)
}

func TestMover_Transition(t *testing.T) {
	u := &fakeUpdater{tasks: []task.Task{mk("a", task.StatusPending)}}
	m := NewMover(u)
	ctx := context.Background()

	got, err := m.Transition(ctx, "a", "pending", "in-progress")
	require.NoError(t, err)
	assert.Equal(t, task.StatusInProgress, got.Status)
	assert.Equal(t, 1, u.updates)

	b := Partition(u.Snapshot().Tasks, VisibleColumns(filter.ModeActive))
	col, _ := b.Column(task.StatusInProgress)
	assert.Equal(t, []string{"a"}, ids(col.Tasks))
}

func TestMover_TransitionIsIdempotent(t *testing.T) {
	u := &fakeUpdater{tasks: []task.Task{mk("a", task.StatusPending)}}
	m := NewMover(u)
	ctx := context.Background()

	first, err := m.Transition(ctx, "a", "pending", "completed")
	require.NoError(t, err)
	second, err := m.Transition(ctx, "a", "pending", "completed")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, task.StatusCompleted, second.Status)
	assert.Equal(t, 1, u.updates, "duplicate drop dispatches nothing")
}

func TestMover_SameColumnIsReorder(t *testing.T) {
	u := &fakeUpdater{tasks: []task.Task{mk("a", task.StatusPending)}}
	got, err := NewMover(u).Transition(context.Background(), "a", "pending", "pending")
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, 0, u.updates)
}

func TestMover_InvalidTarget(t *testing.T) {
	u := &fakeUpdater{tasks: []task.Task{mk("a", task.StatusPending)}}
	m := NewMover(u)

	for _, to := range []string{"archived", "", "Completed", "in_progress"} {
		_, err := m.Transition(context.Background(), "a", "pending", to)
		assert.ErrorIs(t, err, ErrInvalidTransition, "target %q", to)
		assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	}
	assert.Equal(t, 0, u.updates)
	assert.Equal(t, task.StatusPending, u.tasks[0].Status)
}

func TestMover_UnknownTask(t *testing.T) {
	u := &fakeUpdater{}
	_, err := NewMover(u).Transition(context.Background(), "ghost", "pending", "completed")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.Equal(t, 0, u.updates)
}

func TestMover_UpdateFailure(t *testing.T) {
	u := &fakeUpdater{tasks: []task.Task{mk("a", task.StatusPending)}, err: errors.New("offline")}
	_, err := NewMover(u).Transition(context.Background(), "a", "pending", "completed")
	assert.Error(t, err)
	assert.Equal(t, task.StatusPending, u.tasks[0].Status)
}
