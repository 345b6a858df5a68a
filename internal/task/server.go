package task

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/pkg/cerr"
	"github.com/taskpulse/taskpulse/pkg/clog"
)

const maxBodyBytes = 1 << 20

// Server exposes the owner-scoped task collection over REST.
type Server struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

type ServerOption func(*Server)

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

func WithIDGenerator(gen func() string) ServerOption {
	return func(s *Server) {
		s.newID = gen
	}
}

func NewServer(repo Repository, opts ...ServerOption) *Server {
	s := &Server{
		repo:  repo,
		now:   time.Now,
		newID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes mounts the task endpoints. The router must already run the auth and
// JSON response middlewares.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.ListTasks)
	r.Post("/", s.CreateTask)
	r.Get("/{id}", s.GetTask)
	r.Put("/{id}", s.UpdateTask)
	r.Delete("/{id}", s.DeleteTask)
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := auth.OwnerFrom(ctx)
	tasks, err := s.repo.List(ctx, owner)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, *t)
	}
	cerr.SetJSONResponse(ctx, out)
}

func (s *Server) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddTaskID(ctx, id)
	t, err := s.repo.Get(ctx, auth.OwnerFrom(ctx), id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var draft Draft
	if err := decodeBody(r, &draft); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := draft.Validate(); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	t := draft.Build(s.newID(), auth.OwnerFrom(ctx), s.now().UTC())
	clog.AddTaskID(ctx, t.ID)
	if err := s.repo.Create(ctx, &t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	slog.DebugContext(ctx, "task created", "status", t.Status, "priority", t.Priority)
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, t)
}

func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddTaskID(ctx, id)

	var patch Patch
	if err := decodeBody(r, &patch); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := patch.Validate(); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	t, err := s.repo.Get(ctx, auth.OwnerFrom(ctx), id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	oldStatus := t.Status
	patch.Apply(t)
	t.UpdatedAt = s.touch(*t)
	if err := s.repo.Update(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if oldStatus != t.Status {
		slog.DebugContext(ctx, "task status changed", "from", oldStatus, "to", t.Status)
	}
	cerr.SetJSONResponse(ctx, t)
}

type deleteResponse struct {
	Message string `json:"message"`
}

func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	clog.AddTaskID(ctx, id)
	if err := s.repo.Delete(ctx, auth.OwnerFrom(ctx), id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, deleteResponse{Message: "Task deleted successfully"})
}

// touch returns the UpdatedAt for a mutation of t; never before CreatedAt or
// the previous UpdatedAt.
func (s *Server) touch(t Task) time.Time {
	now := s.now().UTC()
	if now.Before(t.UpdatedAt) {
		return t.UpdatedAt
	}
	return now
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "malformed request body", fmt.Errorf("decode %T: %w", dst, err))
	}
	return nil
}
