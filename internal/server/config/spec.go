// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for credgate-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Storage   StorageSection   `koanf:"storage"`
	Directory DirectorySection `koanf:"directory"`
	Auth      AuthSection      `koanf:"auth"`
	Security  SecuritySection  `koanf:"security"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http"`
	Local LocalConfig `koanf:"local"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// StorageSection configures session storage.
type StorageSection struct {
	// Backend selects the session store: memory, badger, or redis.
	Backend string `koanf:"backend"`

	// DataDir holds WAL, snapshot, and badger files.
	DataDir string `koanf:"data_dir"`

	WALSyncInterval  time.Duration `koanf:"wal_sync_interval"`
	SnapshotKeep     int           `koanf:"snapshot_keep"`
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	Badger BadgerStorageConfig `koanf:"badger"`
	Redis  RedisStorageConfig  `koanf:"redis"`
}

// BadgerStorageConfig tunes the badger backend.
type BadgerStorageConfig struct {
	GCInterval  time.Duration `koanf:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold"`
	NoSync      bool          `koanf:"no_sync"`
}

// RedisStorageConfig configures the redis backend.
type RedisStorageConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// DirectorySection configures the user directory.
type DirectorySection struct {
	// Backend selects the directory store: memory, file, or postgres.
	Backend string `koanf:"backend"`

	// File is the users YAML path for the file backend.
	File string `koanf:"file"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `koanf:"postgres_dsn"`

	// Bootstrap seeds an admin account when the directory is empty.
	Bootstrap BootstrapConfig `koanf:"bootstrap"`
}

// BootstrapConfig describes the seeded admin account.
type BootstrapConfig struct {
	Username    string `koanf:"username"`
	Password    string `koanf:"password"`
	DisplayName string `koanf:"display_name"`
}

// AuthSection configures authentication behavior.
type AuthSection struct {
	// TokenFormat selects issued token format: opaque or jwt.
	TokenFormat string `koanf:"token_format"`

	SessionTTL         time.Duration `koanf:"session_ttl"`
	MaxSessionTTL      time.Duration `koanf:"max_session_ttl"`
	MaxSessionsPerUser int           `koanf:"max_sessions_per_user"`

	Lockout LockoutConfig `koanf:"lockout"`
	JWT     JWTConfig     `koanf:"jwt"`
}

// LockoutConfig controls account lockout after failed logins.
type LockoutConfig struct {
	// MaxFailures locks the account after this many consecutive
	// password failures.
	MaxFailures int `koanf:"max_failures"`

	// Window is the rate-limit window applied per username+IP pair
	// before the password is even checked.
	Window time.Duration `koanf:"window"`

	// Duration is how long a locked account stays locked.
	Duration time.Duration `koanf:"duration"`
}

// JWTConfig configures JWT issuance when token_format is jwt.
type JWTConfig struct {
	SigningKey string `koanf:"signing_key"`
	Issuer     string `koanf:"issuer"`
	Audience   string `koanf:"audience"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// EncryptionKey enables WAL and snapshot encryption at rest.
	EncryptionKey string `koanf:"encryption_key"`

	TLSCAFile string `koanf:"tls_ca_file"`

	// AdminAllowList restricts /admin/v1 to these CIDRs or IPs.
	AdminAllowList []string `koanf:"admin_allow_list"`

	CORSAllowedOrigins  []string `koanf:"cors_allowed_origins"`
	MetricsAuthRequired bool     `koanf:"metrics_auth_required"`

	// GlobalRateLimit is requests per second per client IP.
	GlobalRateLimit float64 `koanf:"global_rate_limit"`

	// LoginRateLimit is login attempts per second per client IP.
	LoginRateLimit float64 `koanf:"login_rate_limit"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
