// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr    = "127.0.0.1:5080"
	DefaultHTTPSAddr   = "127.0.0.1:5443"
	DefaultLocalSocket = "/var/run/credgate-server/credgate-server.sock"

	DefaultStorageBackend  = "memory"
	DefaultDataDir         = "/var/lib/credgate-server/data"
	DefaultWALSyncInterval = 100 * time.Millisecond
	DefaultSnapshotKeep    = 3

	DefaultDirectoryBackend = "memory"

	DefaultTokenFormat        = "opaque"
	DefaultSessionTTL         = 24 * time.Hour
	DefaultMaxSessionTTL      = 30 * 24 * time.Hour
	DefaultMaxSessionsPerUser = 50

	DefaultLockoutMaxFailures = 5
	DefaultLockoutWindow      = time.Minute
	DefaultLockoutDuration    = 15 * time.Minute

	DefaultGlobalRateLimit = 100.0
	DefaultLoginRateLimit  = 5.0

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
			Local: LocalConfig{
				Enabled: false,
				Path:    DefaultLocalSocket,
			},
		},
		Storage: StorageSection{
			Backend:         DefaultStorageBackend,
			DataDir:         DefaultDataDir,
			WALSyncInterval: DefaultWALSyncInterval,
			SnapshotKeep:    DefaultSnapshotKeep,
		},
		Directory: DirectorySection{
			Backend: DefaultDirectoryBackend,
		},
		Auth: AuthSection{
			TokenFormat:        DefaultTokenFormat,
			SessionTTL:         DefaultSessionTTL,
			MaxSessionTTL:      DefaultMaxSessionTTL,
			MaxSessionsPerUser: DefaultMaxSessionsPerUser,
			Lockout: LockoutConfig{
				MaxFailures: DefaultLockoutMaxFailures,
				Window:      DefaultLockoutWindow,
				Duration:    DefaultLockoutDuration,
			},
		},
		Security: SecuritySection{
			GlobalRateLimit: DefaultGlobalRateLimit,
			LoginRateLimit:  DefaultLoginRateLimit,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
