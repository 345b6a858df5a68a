// Package store holds the authenticated user's tasks in memory and keeps them
// consistent with the remote task service.
package store

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/taskpulse/taskpulse/internal/client"
	"github.com/taskpulse/taskpulse/internal/eventbus"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
	"github.com/taskpulse/taskpulse/pkg/panicerr"
)

// ErrStale is returned when a server response arrives after the store was
// reset or after a newer load started. The response is dropped.
var ErrStale = errors.New("store: response superseded")

// Observer is called with every new snapshot, in version order. It runs while
// the store's write lock is held: it may read the store but must not call
// mutating methods, Subscribe or Unsubscribe.
type Observer func(Snapshot)

// Store is the client-side cache of one user's tasks.
type Store struct {
	gateway client.Gateway
	bus     *eventbus.Bus
	logger  *slog.Logger

	mu        sync.Mutex
	cur       atomic.Pointer[Snapshot]
	loadSeq   uint64 // bumped by Load and Reset
	epoch     uint64 // bumped by Reset only
	observers []observerEntry
}

type observerEntry struct {
	id string
	fn Observer
}

// Option configures a Store.
type Option func(*Store)

// WithEventBus also publishes every change on bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(s *Store) {
		s.bus = bus
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New returns an idle Store that talks to gateway.
func New(gateway client.Gateway, opts ...Option) *Store {
	s := &Store{
		gateway: gateway,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	s.cur.Store(&Snapshot{Status: StatusIdle})
	return s
}

func (s *Store) Snapshot() Snapshot {
	return *s.cur.Load()
}

func (s *Store) Subscribe(fn Observer) string {
	id := ulid.Make().String()
	s.mu.Lock()
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	s.mu.Unlock()
	return id
}

func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	s.observers = slices.DeleteFunc(s.observers, func(e observerEntry) bool { return e.id == id })
	s.mu.Unlock()
}

// Load replaces the whole collection with the server's. On failure the store
// turns failed and keeps the previous tasks.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	prev := s.cur.Load()
	s.swapLocked(ctx, "load", Snapshot{Status: StatusLoading, Tasks: prev.Tasks, pending: prev.pending}, "", "")
	s.mu.Unlock()

	tasks, err := s.gateway.FetchAll(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loadSeq {
		s.logger.DebugContext(ctx, "dropping superseded load", "op", "load")
		return ErrStale
	}
	prev = s.cur.Load()
	if err != nil {
		s.swapLocked(ctx, "load", Snapshot{Status: StatusFailed, Tasks: prev.Tasks, Err: err, pending: prev.pending}, "", eventbus.EventLoadFailed)
		s.logger.WarnContext(ctx, "task load failed", "op", "load", "error", err)
		return err
	}
	s.swapLocked(ctx, "load", Snapshot{Status: StatusReady, Tasks: dedupe(ctx, s.logger, tasks), pending: prev.pending}, "", eventbus.EventLoaded)
	return nil
}

// Reset forgets every task. Responses to requests issued before the reset
// are discarded when they arrive.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq++
	s.epoch++
	s.swapLocked(context.Background(), "reset", Snapshot{Status: StatusIdle}, "", eventbus.EventReset)
}

// Add creates a task on the server and places it first, matching the
// server's newest-first order.
func (s *Store) Add(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := draft.Validate(); err != nil {
		return task.Task{}, err
	}
	epoch := s.currentEpoch()

	created, err := s.gateway.Create(ctx, draft)
	if err != nil {
		return task.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return created, ErrStale
	}
	prev := s.cur.Load()
	next := make([]task.Task, 0, len(prev.Tasks)+1)
	next = append(next, created)
	for _, t := range prev.Tasks {
		if t.ID != created.ID {
			next = append(next, t)
		}
	}
	s.swapLocked(ctx, "add", s.derive(prev, next), created.ID, eventbus.EventCreated)
	return created, nil
}

// Update sends patch to the server. The local task keeps its old fields,
// marked pending, until the server answers; the server's copy then replaces
// it in place.
func (s *Store) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	epoch, err := s.beginMutation(ctx, "update", id, func() error { return patch.Validate() })
	if err != nil {
		return task.Task{}, err
	}

	updated, err := s.gateway.Update(ctx, id, patch)

	s.mu.Lock()
	if err != nil {
		s.endMutationLocked(ctx, "update", id, epoch, nil)
		s.mu.Unlock()
		s.refreshIfGone(ctx, id, err)
		return task.Task{}, err
	}
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return updated, ErrStale
	}
	s.endMutationLocked(ctx, "update", id, epoch, func(prev []task.Task) ([]task.Task, bool) {
		i := slices.IndexFunc(prev, func(t task.Task) bool { return t.ID == id })
		if i < 0 {
			// removed while in flight
			return prev, false
		}
		next := slices.Clone(prev)
		next[i] = updated
		return next, true
	})
	return updated, nil
}

// Remove deletes the task on the server, then locally.
func (s *Store) Remove(ctx context.Context, id string) error {
	epoch, err := s.beginMutation(ctx, "remove", id, nil)
	if err != nil {
		return err
	}

	err = s.gateway.Remove(ctx, id)

	s.mu.Lock()
	if err != nil {
		s.endMutationLocked(ctx, "remove", id, epoch, nil)
		s.mu.Unlock()
		s.refreshIfGone(ctx, id, err)
		return err
	}
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return ErrStale
	}
	s.endMutationLocked(ctx, "remove", id, epoch, func(prev []task.Task) ([]task.Task, bool) {
		next := slices.DeleteFunc(slices.Clone(prev), func(t task.Task) bool { return t.ID == id })
		return next, len(next) != len(prev)
	})
	return nil
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// beginMutation checks that id is held locally, runs validate and marks the
// task pending. Nothing changes when it fails.
func (s *Store) beginMutation(ctx context.Context, op, id string, validate func() error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cur.Load()
	if prev.index(id) < 0 {
		return 0, task.NotFoundError(id)
	}
	if validate != nil {
		if err := validate(); err != nil {
			return 0, err
		}
	}
	next := *prev
	next.pending = prev.withPending(id, true)
	s.swapLocked(ctx, op, next, id, "")
	return s.epoch, nil
}

// endMutationLocked clears the pending mark and, when apply is set, swaps in
// the collection it returns. A reset in between leaves the new epoch alone.
func (s *Store) endMutationLocked(ctx context.Context, op, id string, epoch uint64, apply func([]task.Task) ([]task.Task, bool)) {
	if epoch != s.epoch {
		return
	}
	prev := s.cur.Load()
	next := *prev
	next.pending = prev.withPending(id, false)
	var event eventbus.EventType
	if apply != nil {
		tasks, changed := apply(prev.Tasks)
		if changed {
			next.Tasks = tasks
			event = eventbus.EventUpdated
			if op == "remove" {
				event = eventbus.EventDeleted
			}
		}
	}
	s.swapLocked(ctx, op, next, id, event)
}

// refreshIfGone reloads the collection when the server no longer knows id.
func (s *Store) refreshIfGone(ctx context.Context, id string, err error) {
	if !cerr.IsCode(err, cerr.NotFound) {
		return
	}
	s.logger.InfoContext(ctx, "task missing on server, refreshing", "task_id", id)
	if lerr := s.Load(ctx); lerr != nil && !errors.Is(lerr, ErrStale) {
		s.logger.WarnContext(ctx, "refresh after missing task failed", "task_id", id, "error", lerr)
	}
}

func (s *Store) derive(prev *Snapshot, tasks []task.Task) Snapshot {
	next := *prev
	next.Tasks = tasks
	return next
}

// swapLocked installs next with a fresh version, then notifies observers and
// the event bus. s.mu must be held.
func (s *Store) swapLocked(ctx context.Context, op string, next Snapshot, taskID string, event eventbus.EventType) {
	next.Version = s.cur.Load().Version + 1
	s.cur.Store(&next)
	s.logger.DebugContext(ctx, "snapshot swapped",
		"op", op, "task_id", taskID, "version", next.Version, "status", next.Status, "tasks", len(next.Tasks))

	for _, o := range s.observers {
		if err := panicerr.Call(func() { o.fn(next) }); err != nil {
			s.logger.ErrorContext(ctx, "store observer panicked", "observer", o.id, "version", next.Version, "error", err)
		}
	}
	if s.bus != nil && event != "" {
		s.bus.PublishNew(event, taskID, next.Version)
	}
}

// dedupe keeps the first occurrence of every id.
func dedupe(ctx context.Context, logger *slog.Logger, tasks []task.Task) []task.Task {
	seen := make(map[string]struct{}, len(tasks))
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.ID]; ok {
			logger.WarnContext(ctx, "duplicate task id from server", "task_id", t.ID)
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
