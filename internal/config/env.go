package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const namespace = "TASKPULSE"

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type HTTPEnv struct {
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	// Comma separated; "*" allows any origin.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

type AuthEnv struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

type StorageEnv struct {
	// local, s3 or sqlite
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskpulse/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskpulse/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// SQLite settings (used when Type == "sqlite")
	SQLitePath string `envconfig:"SQLITE_PATH" default:".taskpulse/taskpulse.db"`
}

type CacheEnv struct {
	// Empty disables the task list cache.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// Env is the server environment.
type Env struct {
	BaseEnv
	HTTPEnv
	AuthEnv
	StorageEnv
	CacheEnv
}

// ClientEnv configures the CLI and anything else that talks to the server.
type ClientEnv struct {
	BaseEnv
	ServerURL      string        `envconfig:"SERVER_URL" default:"http://localhost:3100"`
	Token          string        `envconfig:"TOKEN"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	// IANA zone used for "today" in analytics; empty means the system zone.
	Timezone string `envconfig:"TIMEZONE"`
}

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.JWTSecret == "" {
		return nil, fmt.Errorf("failed to load env: %s_JWT_SECRET must not be empty", namespace)
	}
	switch env.StorageEnv.Type {
	case "local", "s3", "sqlite":
	default:
		return nil, fmt.Errorf("failed to load env: unknown storage type %q", env.StorageEnv.Type)
	}
	if env.StorageEnv.Type == "s3" && env.S3Bucket == "" {
		return nil, fmt.Errorf("failed to load env: %s_S3_BUCKET is required for s3 storage", namespace)
	}
	return &env, nil
}

func LoadClientEnv() (*ClientEnv, error) {
	var env ClientEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load client env: %w", err)
	}
	return &env, nil
}

// LoadAuthEnv reads only the token settings, for tools that mint tokens
// without running the server.
func LoadAuthEnv() (*AuthEnv, error) {
	var env AuthEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load auth env: %w", err)
	}
	if env.JWTSecret == "" {
		return nil, fmt.Errorf("failed to load auth env: %s_JWT_SECRET must not be empty", namespace)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) IsLocal() bool {
	return e == nil || e.Env == "local"
}

// Location resolves Timezone, falling back to time.Local.
func (e *ClientEnv) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}
