package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	server "github.com/taskpulse/taskpulse/internal"
	"github.com/taskpulse/taskpulse/internal/auth"
	"github.com/taskpulse/taskpulse/internal/config"
	"github.com/taskpulse/taskpulse/internal/task"
	taskrepo "github.com/taskpulse/taskpulse/internal/task/repositoryimpl"
	"github.com/taskpulse/taskpulse/internal/taskcache"
	"github.com/taskpulse/taskpulse/pkg/clog"
	"github.com/taskpulse/taskpulse/pkg/panicerr"
	"github.com/taskpulse/taskpulse/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.IsLocal() {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	repo, closeRepo, err := setupRepository(ctx, env)
	if err != nil {
		slog.Error("failed to set up task repository", "storage", env.StorageEnv.Type, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	if env.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, task list cache will miss", "addr", env.RedisAddr, "error", err)
		}
		repo = taskcache.New(repo, rdb, env.CacheEnv.TTL)
		slog.Info("task list cache enabled", "addr", env.RedisAddr, "ttl", env.CacheEnv.TTL)
	}

	issuer, err := auth.NewIssuer(env.JWTSecret, auth.WithTTL(env.TokenTTL))
	if err != nil {
		slog.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(env, issuer, task.NewServer(repo))

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}))
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := p.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupRepository(ctx context.Context, env *config.Env) (task.Repository, func(), error) {
	switch env.StorageEnv.Type {
	case "sqlite":
		repo, err := taskrepo.OpenSQLite(env.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				slog.Error("failed to close sqlite", "error", err)
			}
		}, nil
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, nil, err
		}
		return taskrepo.NewYAMLRepository(s), func() {}, nil
	default:
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, nil, err
		}
		return taskrepo.NewYAMLRepository(s), func() {}, nil
	}
}
