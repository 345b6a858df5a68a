package task

import (
	"errors"
	"fmt"

	"github.com/taskpulse/taskpulse/pkg/cerr"
)

var (
	ErrValidation = errors.New("task: validation failed")
	ErrNotFound   = errors.New("task: not found")
	ErrForbidden  = errors.New("task: owned by another user")
)

func validationError(msg string) error {
	return cerr.NewError(cerr.InvalidArgument, msg, ErrValidation)
}

func NotFoundError(id string) error {
	return cerr.NewError(cerr.NotFound, "task not found", fmt.Errorf("task %s: %w", id, ErrNotFound))
}

// ForbiddenError is returned when id exists but belongs to someone else.
func ForbiddenError(id string) error {
	return cerr.NewError(cerr.PermissionDenied, "not authorized", fmt.Errorf("task %s: %w", id, ErrForbidden))
}
