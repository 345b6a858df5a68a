package internal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/internal/task/repositoryimpl"
	"github.com/taskpulse/taskpulse/pkg/storage"
)

func newTestHandler(t *testing.T, origins ...string) (http.Handler, *auth.Issuer) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("test-secret")
	require.NoError(t, err)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	env := &config.Env{HTTPEnv: config.HTTPEnv{AllowedOrigins: origins}}
	srv := NewServer(env, issuer, task.NewServer(repositoryimpl.NewYAMLRepository(s)))
	return srv.Handler(), issuer
}

func TestServer_Health(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequiresToken(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.Contains(t, rec.Body.String(), `"code":"unauthenticated"`)
	}
}

func TestServer_Routes(t *testing.T) {
	h, issuer := newTestHandler(t)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = send(http.MethodPost, "/api/tasks", `{"title":"a","description":"b"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = send(http.MethodGet, "/api/projects", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"not_found","message":"not found"}`, rec.Body.String())
}

func TestServer_CORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, "https://app.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "authorization")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
