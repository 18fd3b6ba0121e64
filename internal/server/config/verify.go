// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyDirectory(&cfg.Directory); err != nil {
		return err
	}
	if err := verifyAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}

	// TLS cert and key come as a pair
	hasCert := cfg.HTTP.TLSCertFile != ""
	hasKey := cfg.HTTP.TLSKeyFile != ""
	if hasCert != hasKey {
		return errors.New("server.http.tls_cert_file and tls_key_file must both be set")
	}
	if hasCert {
		if _, err := os.Stat(cfg.HTTP.TLSCertFile); err != nil {
			return fmt.Errorf("server.http.tls_cert_file: %w", err)
		}
		if _, err := os.Stat(cfg.HTTP.TLSKeyFile); err != nil {
			return fmt.Errorf("server.http.tls_key_file: %w", err)
		}
	}

	if cfg.Local.Enabled && cfg.Local.Path == "" {
		return errors.New("server.local.path is required when the local socket is enabled")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "", "memory", "badger":
		if cfg.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}
		// Check if data directory exists or can be created
		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("cannot create data directory: %w", err)
		}
		if cfg.SnapshotKeep < 1 {
			return errors.New("storage.snapshot_keep must be at least 1")
		}

	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis backend")
		}

	default:
		return fmt.Errorf("storage.backend %q is not one of memory, badger, redis", cfg.Backend)
	}
	return nil
}

func verifyDirectory(cfg *DirectorySection) error {
	switch cfg.Backend {
	case "", "memory":
	case "file":
		if cfg.File == "" {
			return errors.New("directory.file is required for the file backend")
		}
	case "postgres":
		if cfg.PostgresDSN == "" {
			return errors.New("directory.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("directory.backend %q is not one of memory, file, postgres", cfg.Backend)
	}

	// Bootstrap needs both halves of the credential pair
	hasUser := cfg.Bootstrap.Username != ""
	hasPass := cfg.Bootstrap.Password != ""
	if hasUser != hasPass {
		return errors.New("directory.bootstrap.username and password must both be set")
	}
	return nil
}

func verifyAuth(cfg *AuthSection) error {
	switch cfg.TokenFormat {
	case "", "opaque":
	case "jwt":
		if len(cfg.JWT.SigningKey) < 32 {
			return errors.New("auth.jwt.signing_key must be at least 32 characters for the jwt token format")
		}
	default:
		return fmt.Errorf("auth.token_format %q is not one of opaque, jwt", cfg.TokenFormat)
	}

	if cfg.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if cfg.MaxSessionTTL < cfg.SessionTTL {
		return errors.New("auth.max_session_ttl must be at least auth.session_ttl")
	}
	if cfg.MaxSessionsPerUser < 1 {
		return errors.New("auth.max_sessions_per_user must be at least 1")
	}

	if cfg.Lockout.MaxFailures < 1 {
		return errors.New("auth.lockout.max_failures must be at least 1")
	}
	if cfg.Lockout.Duration <= 0 {
		return errors.New("auth.lockout.duration must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	// The encryption key is used as a 256-bit cipher key
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) < 16 {
		return errors.New("security.encryption_key must be at least 16 characters")
	}
	if cfg.GlobalRateLimit <= 0 {
		return errors.New("security.global_rate_limit must be positive")
	}
	if cfg.LoginRateLimit <= 0 {
		return errors.New("security.login_rate_limit must be positive")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}
