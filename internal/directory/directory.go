package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/directory/file"
	"github.com/yndnr/credgate/internal/directory/memory"
	"github.com/yndnr/credgate/internal/directory/postgres"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config selects and parameterizes the directory backend.
type Config struct {
	// Backend is one of memory, file, postgres.
	Backend string

	// Path is the users file location (file backend).
	Path string

	// DSN is the connection string (postgres backend).
	DSN string

	// Logger receives reload and schema events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store is a user repository with a lifecycle.
type Store interface {
	service.UserRepository

	// Close releases backend resources (watchers, pools).
	Close() error
}

// Open opens the configured directory backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendMemory:
		return memory.NewStore(), nil

	case BackendFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("directory: file backend requires a path")
		}
		return file.Open(cfg.Path, file.WithLogger(logger))

	case BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("directory: postgres backend requires a dsn")
		}
		return postgres.Open(ctx, cfg.DSN, postgres.WithLogger(logger))

	default:
		return nil, fmt.Errorf("directory: unknown backend %q", cfg.Backend)
	}
}
