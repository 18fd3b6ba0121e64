// Package storage provides session storage engines for CredGate.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yndnr/credgate/internal/core/domain"
	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/storage/snapshot"
	"github.com/yndnr/credgate/internal/storage/wal"
	"github.com/yndnr/credgate/pkg/crypto/adaptive"
)

// Supported storage backends.
const (
	// BackendMemory keeps sessions in sharded in-memory maps, made durable
	// by the WAL and periodic snapshots.
	BackendMemory = "memory"

	// BackendBadger persists sessions in an embedded BadgerDB.
	BackendBadger = "badger"

	// BackendRedis keeps sessions in an external Redis.
	BackendRedis = "redis"
)

// Default configuration values.
const (
	DefaultSnapshotInterval = time.Hour
	DefaultWALDir           = "data/wal"
	DefaultSnapshotDir      = "data/snapshots"
)

// Store is the interface every session storage engine implements.
//
// It combines the repository interfaces consumed by the session and
// token services with engine lifecycle methods.
type Store interface {
	service.SessionRepository
	service.TokenRepository

	// Count returns the total number of stored sessions.
	Count(ctx context.Context) int

	// Scan iterates over all sessions. The callback receives a clone;
	// returning false stops the iteration.
	Scan(fn func(*domain.Session) bool)

	// Close gracefully shuts down the engine.
	Close() error
}

// Snapshotter is implemented by engines that support on-demand backup
// snapshots. The admin backup API degrades gracefully for engines that
// do not.
type Snapshotter interface {
	TriggerSnapshot(ctx context.Context) (*snapshot.Info, error)
	ListSnapshots() ([]*snapshot.Info, error)
}

// Config configures the storage layer.
type Config struct {
	// Backend selects the engine: memory (default), badger, or redis.
	Backend string

	// DataDir is the base directory for all storage files.
	DataDir string

	// WAL configuration (memory backend).
	WAL wal.Config

	// Snapshot configuration (memory backend).
	Snapshot snapshot.Config

	// Badger configuration (badger backend).
	Badger BadgerConfig

	// Redis configuration (redis backend).
	Redis RedisConfig

	// MaxSessionsPerUser is the session quota per user.
	MaxSessionsPerUser int

	// SnapshotInterval is the interval between automatic snapshots.
	SnapshotInterval time.Duration

	// Cipher is the optional at-rest encryption cipher.
	Cipher adaptive.Cipher

	// NodeID identifies this node in WAL and snapshot headers.
	NodeID string

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		Backend:          BackendMemory,
		DataDir:          dataDir,
		WAL:              wal.DefaultConfig(dataDir + "/" + DefaultWALDir),
		Snapshot:         snapshot.DefaultConfig(dataDir + "/" + DefaultSnapshotDir),
		Badger:           DefaultBadgerConfig(dataDir + "/data/badger"),
		Redis:            DefaultRedisConfig(),
		SnapshotInterval: DefaultSnapshotInterval,
		Logger:           slog.Default(),
	}
}

// Open creates the configured storage engine and performs recovery.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		engine, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if err := engine.Recover(ctx); err != nil {
			engine.Close()
			return nil, fmt.Errorf("storage: recover: %w", err)
		}
		return engine, nil

	case BackendBadger:
		return NewBadgerEngine(cfg)

	case BackendRedis:
		return NewRedisEngine(ctx, cfg)

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// BadgerConfig contains Badger tuning parameters for the badger backend.
type BadgerConfig struct {
	// Dir is the Badger database directory.
	Dir string

	// GCInterval is the interval between automatic value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Higher values trigger GC more aggressively.
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 1GB
	ValueLogFileSize int64

	// SyncWrites enables fsync after each write. Badger is the only
	// durability layer for this backend, so it defaults to true.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,
		ValueLogFileSize: 1 << 30,
		SyncWrites:       true,
	}
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB is the Redis database number.
	DB int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
	}
}
