package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/task"
	"github.com/taskpulse/taskpulse/pkg/cerr"
	"github.com/taskpulse/taskpulse/pkg/clog"
)

type Server struct {
	mu         sync.Mutex
	server     *http.Server
	env        *config.Env
	issuer     *auth.Issuer
	taskServer *task.Server
}

func NewServer(env *config.Env, issuer *auth.Issuer, taskServer *task.Server) *Server {
	return &Server{
		env:        env,
		issuer:     issuer,
		taskServer: taskServer,
	}
}

// Handler builds the full HTTP handler tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		clog.SlogChiMiddleware(clog.WithChiFilter(clog.SkipHealthCheck)),
	)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(
			auth.Middleware(s.issuer),
			cerr.NewJSONResponseChiMiddleware(),
		)
		r.Route("/tasks", s.taskServer.Routes)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.Unimplemented, "method not allowed", nil)
		})
	})

	allowCredentials := true
	for _, origin := range s.env.AllowedOrigins {
		if origin == "*" {
			allowCredentials = false
		}
	}
	return h2c.NewHandler(cors.New(cors.Options{
		AllowedOrigins: s.env.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowCredentials,
	}).Handler(r), &http2.Server{})
}

// ListenAndServe blocks until the server stops. ctx becomes the base context
// of every request.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
