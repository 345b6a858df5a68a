package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "github.com/taskpulse/taskpulse/internal"
	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/internal/task/repositoryimpl"
	"github.com/taskpulse/taskpulse/pkg/cerr"
	"github.com/taskpulse/taskpulse/pkg/storage"
)

type testService struct {
	url    string
	issuer *auth.Issuer
}

func (s testService) clientFor(t *testing.T, owner string) *TaskClient {
	t.Helper()
	token, err := s.issuer.Issue(owner)
	require.NoError(t, err)
	return NewTaskClient(s.url, token, WithTimeout(2*time.Second))
}

func startService(t *testing.T) testService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	var tick atomic.Int64
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}

	issuer, err := auth.NewIssuer("test-secret")
	require.NoError(t, err)
	env := &config.Env{HTTPEnv: config.HTTPEnv{AllowedOrigins: []string{"*"}}}
	srv := server.NewServer(env, issuer, task.NewServer(repositoryimpl.NewYAMLRepository(store), task.WithClock(clock)))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testService{url: ts.URL, issuer: issuer}
}

func TestTaskClient_CRUD(t *testing.T) {
	svc := startService(t)
	c := svc.clientFor(t, "alice")
	ctx := context.Background()

	first, err := c.Create(ctx, task.Draft{Title: "Write report", Description: "Q2 numbers"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "alice", first.Owner)
	assert.Equal(t, task.StatusPending, first.Status)
	assert.Equal(t, task.PriorityMedium, first.Priority)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	second, err := c.Create(ctx, task.Draft{Title: "Review PR", Description: "auth change", Priority: task.PriorityHigh})
	require.NoError(t, err)

	all, err := c.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[1].ID)

	got, err := c.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)

	updated, err := c.Update(ctx, first.ID, task.StatusPatch(task.StatusCompleted))
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, updated.Status)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, first.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Write report", updated.Title, "fields outside the patch are kept")

	require.NoError(t, c.Remove(ctx, first.ID))
	_, err = c.Get(ctx, first.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.ErrorIs(t, err, task.ErrNotFound)

	all, err = c.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTaskClient_EmptyList(t *testing.T) {
	svc := startService(t)
	all, err := svc.clientFor(t, "nobody").FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestTaskClient_OwnerScoping(t *testing.T) {
	svc := startService(t)
	alice := svc.clientFor(t, "alice")
	bob := svc.clientFor(t, "bob")
	ctx := context.Background()

	created, err := alice.Create(ctx, task.Draft{Title: "Secret", Description: "alice only"})
	require.NoError(t, err)

	_, err = bob.Get(ctx, created.ID)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
	assert.ErrorIs(t, err, task.ErrForbidden)

	_, err = bob.Update(ctx, created.ID, task.StatusPatch(task.StatusCompleted))
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	err = bob.Remove(ctx, created.ID)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	bobs, err := bob.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, bobs)

	still, err := alice.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, still.Status)
}

func TestTaskClient_NotFound(t *testing.T) {
	svc := startService(t)
	c := svc.clientFor(t, "alice")
	ctx := context.Background()

	_, err := c.Update(ctx, "missing", task.StatusPatch(task.StatusCompleted))
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	err = c.Remove(ctx, "missing")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestTaskClient_Validation(t *testing.T) {
	svc := startService(t)
	c := svc.clientFor(t, "alice")
	ctx := context.Background()

	_, err := c.Create(ctx, task.Draft{Title: "  ", Description: "x"})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.ErrorIs(t, err, task.ErrValidation)

	_, err = c.Update(ctx, "any", task.Patch{})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestTaskClient_Unauthenticated(t *testing.T) {
	svc := startService(t)
	c := NewTaskClient(svc.url, "forged")

	_, err := c.FetchAll(context.Background())
	assert.True(t, cerr.IsCode(err, cerr.Unauthenticated))
	assert.False(t, cerr.CodeOf(err).Retryable())
}

func TestTaskClient_TransportFailures(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		_, err := NewTaskClient(url, "token").FetchAll(context.Background())
		assert.True(t, cerr.IsCode(err, cerr.Unavailable))
		assert.True(t, cerr.CodeOf(err).Retryable())
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(ts.Close)
		t.Cleanup(func() { close(release) })

		_, err := NewTaskClient(ts.URL, "token", WithTimeout(50*time.Millisecond)).FetchAll(context.Background())
		assert.True(t, cerr.IsCode(err, cerr.DeadlineExceeded))
		assert.True(t, cerr.CodeOf(err).Retryable())
	})

	t.Run("canceled", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(ts.Close)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewTaskClient(ts.URL, "token").FetchAll(ctx)
		assert.True(t, cerr.IsCode(err, cerr.Canceled))
	})

	t.Run("gateway error without body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}))
		t.Cleanup(ts.Close)

		_, err := NewTaskClient(ts.URL, "token").FetchAll(context.Background())
		assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	})
}

func TestTaskClient_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "missing title", body: `[{"id":"1","description":"d","status":"pending","priority":"low","createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"}]`},
		{name: "unknown status", body: `[{"id":"1","title":"t","description":"d","status":"archived","priority":"low","createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"}]`},
		{name: "updated before created", body: `[{"id":"1","title":"t","description":"d","status":"pending","priority":"low","createdAt":"2026-01-02T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(ts.Close)

			_, err := NewTaskClient(ts.URL, "token").FetchAll(context.Background())
			assert.True(t, cerr.IsCode(err, cerr.DataLoss), "got %v", err)
		})
	}
}

func TestTaskClient_SendsBearerToken(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(ts.Close)

	_, err := NewTaskClient(ts.URL+"/", "abc").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)
}
