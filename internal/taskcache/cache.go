// Package taskcache keeps each owner's task list in Redis in front of a
// slower task.Repository.
package taskcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskpulse/taskpulse/internal/task"
)

// Cache is a task.Repository. List is read-through; every successful write
// evicts the owner's entry.
type Cache struct {
	base  task.Repository
	redis *redis.Client
	ttl   time.Duration
}

var _ task.Repository = (*Cache)(nil)

func New(base task.Repository, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("taskcache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) Create(ctx context.Context, t *task.Task) error {
	if err := c.base.Create(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.Owner)
	return nil
}

func (c *Cache) Get(ctx context.Context, owner, id string) (*task.Task, error) {
	return c.base.Get(ctx, owner, id)
}

func (c *Cache) List(ctx context.Context, owner string) ([]*task.Task, error) {
	if tasks, ok := c.load(ctx, owner); ok {
		return tasks, nil
	}
	tasks, err := c.base.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	c.store(ctx, owner, tasks)
	return tasks, nil
}

func (c *Cache) Update(ctx context.Context, t *task.Task) error {
	if err := c.base.Update(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.Owner)
	return nil
}

func (c *Cache) Delete(ctx context.Context, owner, id string) error {
	if err := c.base.Delete(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, owner)
	return nil
}

func (c *Cache) load(ctx context.Context, owner string) ([]*task.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, cacheKey(owner)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// Fall back to the repository; a broken entry is dropped.
			slog.WarnContext(ctx, "task cache read failed", "owner", owner, "error", err)
			_ = c.redis.Del(ctx, cacheKey(owner)).Err()
		}
		return nil, false
	}
	var tasks []*task.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, cacheKey(owner)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, owner string, tasks []*task.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(owner), data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "task cache write failed", "owner", owner, "error", err)
	}
}

func (c *Cache) evict(ctx context.Context, owner string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKey(owner)).Err(); err != nil {
		slog.WarnContext(ctx, "task cache evict failed", "owner", owner, "error", err)
	}
}

func cacheKey(owner string) string {
	return "tasks:" + owner
}
