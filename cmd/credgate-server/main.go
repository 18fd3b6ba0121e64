// Package main provides the entry point for credgate-server.
//
// credgate-server is the authentication gateway: it checks submitted
// credentials against the user directory, issues session credentials,
// and answers validation requests from resource servers.
package main

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/directory"
	"github.com/yndnr/credgate/internal/infra/buildinfo"
	"github.com/yndnr/credgate/internal/infra/confloader"
	"github.com/yndnr/credgate/internal/infra/shutdown"
	"github.com/yndnr/credgate/internal/infra/tlsroots"
	"github.com/yndnr/credgate/internal/server/config"
	"github.com/yndnr/credgate/internal/server/httpserver"
	"github.com/yndnr/credgate/internal/server/httpserver/handler"
	"github.com/yndnr/credgate/internal/server/localserver"
	"github.com/yndnr/credgate/internal/storage"
	"github.com/yndnr/credgate/internal/telemetry/logger"
	"github.com/yndnr/credgate/internal/telemetry/metric"
	"github.com/yndnr/credgate/pkg/crypto/adaptive"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("credgate-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting credgate-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)

	startedAt := time.Now()
	ctx := context.Background()

	// Session store
	store, err := initStorage(ctx, cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// User directory
	dir, err := directory.Open(ctx, directory.Config{
		Backend: cfg.Directory.Backend,
		Path:    cfg.Directory.File,
		DSN:     cfg.Directory.PostgresDSN,
		Logger:  slogLogger,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("open directory: %w", err)
	}

	// Services
	services := initServices(cfg, store, dir)

	// Seed the admin account for fresh deployments.
	if cfg.Directory.Bootstrap.Username != "" {
		created, err := services.Directory.Bootstrap(ctx, []service.BootstrapUser{{
			Username:    cfg.Directory.Bootstrap.Username,
			Password:    cfg.Directory.Bootstrap.Password,
			DisplayName: cfg.Directory.Bootstrap.DisplayName,
			Role:        "admin",
		}})
		if err != nil {
			return fmt.Errorf("bootstrap directory: %w", err)
		}
		if created > 0 {
			log.Info("bootstrapped directory accounts", "created", created)
		}
	}

	// Metrics
	metrics := metric.NewRegistry()
	metrics.RegisterSessionCount(func() float64 {
		return float64(store.Count(context.Background()))
	})

	// HTTP API
	handlerCfg := &handler.Config{
		Auth:           services.Auth,
		Sessions:       services.Session,
		Tokens:         services.Token,
		Directory:      services.Directory,
		Store:          store,
		Metrics:        metrics,
		Logger:         slogLogger,
		Version:        buildinfo.Version,
		StartedAt:      startedAt,
		StorageBackend: cfg.Storage.Backend,
		Reload:         nil, // set below once the config path is bound
	}

	reloadFn := newReloadFunc(*configFile, log)
	handlerCfg.Reload = reloadFn

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:            handlerCfg,
		Logger:             slogLogger,
		AdminAllowList:     cfg.Security.AdminAllowList,
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		GlobalRateLimit:    int(cfg.Security.GlobalRateLimit),
		LoginRatePerMinute: int(cfg.Security.LoginRateLimit * 60),
		EnableAudit:        true,
	})

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	// Graceful shutdown, hooks run in reverse order of startup.
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing user directory")
		return dir.Close()
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("closing session store")
		return store.Close()
	})

	// Local management socket
	if cfg.Server.Local.Enabled {
		localHandler := localserver.NewHandler(&localserver.HandlerConfig{
			Store:          store,
			StorageBackend: cfg.Storage.Backend,
			Version:        buildinfo.Version,
			StartedAt:      startedAt,
			ReloadFunc:     reloadFn,
			DrainFunc: func() {
				httpServer.SetKeepAlivesEnabled(false)
			},
			ShutdownFunc: shutdownHandler.Trigger,
		})
		localServer := localserver.New(cfg.Server.Local.Path, localHandler)

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down local socket")
			return localServer.Shutdown(ctx)
		})

		go func() {
			log.Info("local socket listening", "path", cfg.Server.Local.Path)
			if err := localServer.ListenAndServe(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	// Background sweeps: expired sessions and idle login limiters.
	sweepStop := make(chan struct{})
	go sweepLoop(ctx, services, metrics, slogLogger, sweepStop)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		close(sweepStop)
		return nil
	})

	// With TLS enabled, certificates are watched and reloaded so a
	// rotation never requires a restart.
	var certWatcher *tlsroots.Watcher
	if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
		certWatcher, err = tlsroots.NewWatcher(
			cfg.Server.HTTP.TLSCertFile,
			cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(slogLogger),
		)
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		certWatcher.StartAsync()
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			certWatcher.Stop()
			return nil
		})
	}

	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr, "tls", certWatcher != nil)

		var err error
		if certWatcher != nil {
			err = httpServer.ListenAndServeTLSConfig(&tls.Config{
				GetCertificate: certWatcher.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			})
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// newReloadFunc builds the reload hook shared by the admin API and the
// management socket. A reload re-reads and verifies the config file;
// of the runtime settings only the log level can change without a
// restart, so it is applied here.
func newReloadFunc(configFile string, log logger.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		fresh, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		logger.SetLevel(fresh.Log.Level)
		log.Info("configuration reloaded", "log_level", fresh.Log.Level)
		return nil
	}
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger with credential redaction.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)
	return log, slog.Default(), nil
}

// initStorage opens the session store and recovers persisted state.
func initStorage(ctx context.Context, cfg *config.ServerConfig, log *slog.Logger) (storage.Store, error) {
	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.Backend = cfg.Storage.Backend
	storageCfg.Logger = log
	storageCfg.MaxSessionsPerUser = cfg.Auth.MaxSessionsPerUser

	if cfg.Storage.WALSyncInterval > 0 {
		storageCfg.WAL.SyncInterval = cfg.Storage.WALSyncInterval
	}
	if cfg.Storage.SnapshotKeep > 0 {
		storageCfg.Snapshot.RetentionCount = cfg.Storage.SnapshotKeep
	}
	if cfg.Storage.SnapshotInterval > 0 {
		storageCfg.SnapshotInterval = cfg.Storage.SnapshotInterval
	}

	if cfg.Storage.Backend == storage.BackendRedis {
		storageCfg.Redis.Addr = cfg.Storage.Redis.Addr
		storageCfg.Redis.Password = cfg.Storage.Redis.Password
		storageCfg.Redis.DB = cfg.Storage.Redis.DB
	}

	if cfg.Security.EncryptionKey != "" {
		// The configured key is a passphrase of arbitrary length; the
		// ciphers want exactly 256 bits.
		key := sha256.Sum256([]byte(cfg.Security.EncryptionKey))
		cipher, err := adaptive.New(key[:])
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		storageCfg.Cipher = cipher
	}

	return storage.Open(ctx, storageCfg)
}

// Services holds all initialized services.
type Services struct {
	Token     *service.TokenService
	Session   *service.SessionService
	Auth      *service.AuthService
	Directory *service.DirectoryService
}

// initServices wires the domain services onto the storage engines.
func initServices(cfg *config.ServerConfig, store storage.Store, dir directory.Store) *Services {
	tokenSvc := service.NewTokenService(store, &service.TokenServiceConfig{
		Format:     service.TokenFormat(cfg.Auth.TokenFormat),
		SigningKey: []byte(cfg.Auth.JWT.SigningKey),
		Issuer:     cfg.Auth.JWT.Issuer,
		Audience:   cfg.Auth.JWT.Audience,
	})

	sessionSvc := service.NewSessionService(store, tokenSvc, &service.SessionServiceConfig{
		DefaultTTL: cfg.Auth.SessionTTL,
		MaxTTL:     cfg.Auth.MaxSessionTTL,
		MaxPerUser: cfg.Auth.MaxSessionsPerUser,
	})

	authSvc := service.NewAuthService(dir, sessionSvc, tokenSvc, &service.AuthServiceConfig{
		SessionTTL:       cfg.Auth.SessionTTL,
		LockoutThreshold: cfg.Auth.Lockout.MaxFailures,
		LockoutDuration:  cfg.Auth.Lockout.Duration,
	})

	directorySvc := service.NewDirectoryService(dir, sessionSvc)

	return &Services{
		Token:     tokenSvc,
		Session:   sessionSvc,
		Auth:      authSvc,
		Directory: directorySvc,
	}
}

// sweepLoop periodically removes expired sessions and prunes idle
// per-client login limiters.
func sweepLoop(ctx context.Context, services *Services, metrics *metric.Registry, log *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			removed, err := services.Session.GC(ctx)
			if err != nil {
				log.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				metrics.SessionExpired(removed)
				log.Debug("session sweep", "removed", removed)
			}
			services.Auth.Limiters().Prune(30 * time.Minute)
		}
	}
}
