package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
	"github.com/taskpulse/taskpulse/pkg/storage"
)

const tasksPrefix = "tasks"

// YAMLRepository keeps one YAML document per task. The owner lives inside the
// document, so every access reads it back before deciding.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", tasksPrefix, id)
}

func (r *YAMLRepository) Create(ctx context.Context, t *task.Task) error {
	exists, err := r.storage.Exists(ctx, path(t.ID))
	if err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Get(ctx context.Context, owner, id string) (*task.Task, error) {
	t, err := r.read(ctx, path(id))
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, task.NotFoundError(id)
		}
		return nil, err
	}
	if t.Owner != owner {
		return nil, task.ForbiddenError(id)
	}
	return t, nil
}

// List returns the owner's tasks newest first. Unreadable documents are
// skipped so one corrupt file cannot hide the rest.
func (r *YAMLRepository) List(ctx context.Context, owner string) ([]*task.Task, error) {
	paths, err := r.storage.List(ctx, tasksPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tasks", err)
	}

	var all []*task.Task
	for _, p := range paths {
		t, err := r.read(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable task document", "path", p, "error", err)
			continue
		}
		if t.Owner != owner {
			continue
		}
		all = append(all, t)
	}
	sortNewestFirst(all)
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, t *task.Task) error {
	if _, err := r.Get(ctx, t.Owner, t.ID); err != nil {
		return err
	}
	return r.write(ctx, t)
}

func (r *YAMLRepository) Delete(ctx context.Context, owner, id string) error {
	if _, err := r.Get(ctx, owner, id); err != nil {
		return err
	}
	if err := r.storage.Delete(ctx, path(id)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return task.NotFoundError(id)
		}
		return cerr.WrapStorageDeleteError("task", err)
	}
	return nil
}

func (r *YAMLRepository) read(ctx context.Context, p string) (*task.Task, error) {
	data, err := r.storage.Read(ctx, p)
	if err != nil {
		return nil, cerr.WrapStorageReadError("task", err)
	}
	var t task.Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal task: %w", err))
	}
	return &t, nil
}

func (r *YAMLRepository) write(ctx context.Context, t *task.Task) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal task: %w", err))
	}
	if err := r.storage.Write(ctx, path(t.ID), data); err != nil {
		return cerr.WrapStorageWriteError("task", err)
	}
	return nil
}

func sortNewestFirst(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}
