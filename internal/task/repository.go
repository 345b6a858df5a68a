package task

import "context"

// Repository persists tasks for the remote service. Every call is scoped to
// one owner; implementations return NotFoundError for ids they do not hold
// and ForbiddenError for ids held by a different owner.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, owner, id string) (*Task, error)
	// List returns the owner's tasks, newest CreatedAt first.
	List(ctx context.Context, owner string) ([]*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, owner, id string) error
}
