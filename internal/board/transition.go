package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/store"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
)

var ErrInvalidTransition = errors.New("board: invalid transition")

// StatusUpdater applies a patch and reports the resulting task. *store.Store
// satisfies it.
type StatusUpdater interface {
	Snapshot() store.Snapshot
	Update(ctx context.Context, id string, patch task.Patch) (task.Task, error)
}

// Mover turns completed drags into status updates.
type Mover struct {
	updater StatusUpdater
}

func NewMover(updater StatusUpdater) *Mover {
	return &Mover{updater: updater}
}

// Transition handles a drop of taskID from column from onto column to.
// Dropping onto the same column, or onto the column the task is already in,
// dispatches nothing, which makes repeated drops idempotent.
func (m *Mover) Transition(ctx context.Context, taskID, from, to string) (task.Task, error) {
	target := task.Status(to)
	if !target.IsValid() {
		return task.Task{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown column %q", to),
			fmt.Errorf("move %s to %q: %w", taskID, to, ErrInvalidTransition))
	}

	current, ok := m.updater.Snapshot().Find(taskID)
	if !ok {
		return task.Task{}, task.NotFoundError(taskID)
	}
	if from == to || current.Status == target {
		return current, nil
	}

	slog.DebugContext(ctx, "moving task", "component", "board", "task_id", taskID, "from", current.Status, "to", target)
	return m.updater.Update(ctx, taskID, task.StatusPatch(target))
}
