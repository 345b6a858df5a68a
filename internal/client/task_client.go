// Package client talks to the remote task service over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseSize = 8 << 20
	tasksPath       = "/api/tasks"
)

// Gateway is the part of the client the task store depends on.
type Gateway interface {
	FetchAll(ctx context.Context) ([]task.Task, error)
	Create(ctx context.Context, draft task.Draft) (task.Task, error)
	Update(ctx context.Context, id string, patch task.Patch) (task.Task, error)
	Remove(ctx context.Context, id string) error
}

// TaskClient provides owner-scoped task operations for the holder of token.
type TaskClient struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Gateway = (*TaskClient)(nil)

type Option func(*TaskClient)

func WithHTTPClient(c *http.Client) Option {
	return func(tc *TaskClient) {
		tc.httpClient = c
	}
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(tc *TaskClient) {
		tc.timeout = d
	}
}

// NewTaskClient creates a new task client
func NewTaskClient(baseURL, token string, opts ...Option) *TaskClient {
	c := &TaskClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    DefaultTimeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// FetchAll lists the caller's tasks, newest first.
func (c *TaskClient) FetchAll(ctx context.Context) ([]task.Task, error) {
	var tasks []task.Task
	if err := c.do(ctx, http.MethodGet, tasksPath, nil, &tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := checkTask(tasks[i]); err != nil {
			return nil, err
		}
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

// Create creates a new task
func (c *TaskClient) Create(ctx context.Context, draft task.Draft) (task.Task, error) {
	if err := draft.Validate(); err != nil {
		return task.Task{}, err
	}
	return c.doTask(ctx, http.MethodPost, tasksPath, draft)
}

// Get gets a specific task
func (c *TaskClient) Get(ctx context.Context, id string) (task.Task, error) {
	return c.doTask(ctx, http.MethodGet, taskPath(id), nil)
}

// Update applies patch to the task and returns the server's copy.
func (c *TaskClient) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if err := patch.Validate(); err != nil {
		return task.Task{}, err
	}
	return c.doTask(ctx, http.MethodPut, taskPath(id), patch)
}

// Remove deletes a task
func (c *TaskClient) Remove(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id string) string {
	return tasksPath + "/" + url.PathEscape(id)
}

func (c *TaskClient) doTask(ctx context.Context, method, path string, body any) (task.Task, error) {
	var t task.Task
	if err := c.do(ctx, method, path, body, &t); err != nil {
		return task.Task{}, err
	}
	if err := checkTask(t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (c *TaskClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return cerr.NewError(cerr.Internal, "failed to encode request", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return transportError(ctx, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return cerr.NewError(cerr.DataLoss, "malformed response from task service", fmt.Errorf("%s %s: %w", method, path, err))
	}
	return nil
}

// transportError classifies failures that happened before a response arrived.
func transportError(ctx context.Context, method, path string, err error) error {
	wrapped := fmt.Errorf("%s %s: %w", method, path, err)
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return cerr.NewError(cerr.Canceled, "request canceled", wrapped)
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return cerr.NewError(cerr.DeadlineExceeded, "task service timed out", wrapped)
	default:
		return cerr.NewError(cerr.Unavailable, "task service unreachable", wrapped)
	}
}

// responseError rebuilds the server's coded error and attaches the task
// sentinel that matches it.
func responseError(status int, raw []byte) error {
	e := cerr.FromHTTPResponse(status, raw)
	switch e.Code {
	case cerr.NotFound:
		e.Err = task.ErrNotFound
	case cerr.PermissionDenied:
		e.Err = task.ErrForbidden
	case cerr.InvalidArgument:
		e.Err = task.ErrValidation
	}
	return e
}

func checkTask(t task.Task) error {
	if err := t.Validate(); err != nil {
		return cerr.NewError(cerr.DataLoss, "malformed task from task service", err)
	}
	return nil
}
