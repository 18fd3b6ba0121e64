// Package localserver provides the local management server.
package localserver

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/yndnr/credgate/internal/storage"
)

// HandlerConfig holds the dependencies for local management commands.
type HandlerConfig struct {
	// Store provides the session count for status output. Optional.
	Store storage.Store

	// StorageBackend names the active engine ("memory", "badger", "redis").
	StorageBackend string

	// Version is the build version reported by status.
	Version string

	// StartedAt is the process start time.
	StartedAt time.Time

	// ReloadFunc re-reads the configuration. Optional.
	ReloadFunc func(ctx context.Context) error

	// DrainFunc stops accepting new connections. Optional.
	DrainFunc func()

	// ShutdownFunc triggers a graceful process shutdown. It must signal
	// rather than block; the response is written before it runs.
	ShutdownFunc func()
}

// Handler handles local management commands.
type Handler struct {
	cfg *HandlerConfig
}

// NewHandler creates a new Handler.
func NewHandler(cfg *HandlerConfig) *Handler {
	if cfg == nil {
		cfg = &HandlerConfig{}
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	return &Handler{cfg: cfg}
}

// Execute executes a local management command.
//
// Responses are line oriented: the first line is "OK" or "ERR <reason>",
// optionally followed by "key: value" detail lines.
func (h *Handler) Execute(w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "status":
		return h.handleStatus(w)
	case "shutdown":
		return h.handleShutdown(w)
	case "reload":
		return h.handleReload(w)
	case "drain":
		return h.handleDrain(w)
	case "ping":
		_, err := fmt.Fprintln(w, "OK")
		return err
	default:
		_, err := fmt.Fprintf(w, "ERR unknown command: %s\n", cmd)
		return err
	}
}

func (h *Handler) handleStatus(w io.Writer) error {
	sessionCount := 0
	if h.cfg.Store != nil {
		sessionCount = h.cfg.Store.Count(context.Background())
	}

	if _, err := fmt.Fprintln(w, "OK"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w,
		"version: %s\nuptime_seconds: %d\nstorage_backend: %s\nsession_count: %d\npid: %d\n",
		h.cfg.Version,
		int64(time.Since(h.cfg.StartedAt).Seconds()),
		h.cfg.StorageBackend,
		sessionCount,
		os.Getpid(),
	)
	return err
}

func (h *Handler) handleShutdown(w io.Writer) error {
	if h.cfg.ShutdownFunc == nil {
		_, err := fmt.Fprintln(w, "ERR shutdown not available")
		return err
	}

	if _, err := fmt.Fprintln(w, "OK\nshutting down"); err != nil {
		return err
	}
	// Signal after the response so the client sees the acknowledgement.
	go h.cfg.ShutdownFunc()
	return nil
}

func (h *Handler) handleReload(w io.Writer) error {
	if h.cfg.ReloadFunc == nil {
		_, err := fmt.Fprintln(w, "ERR reload not available")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.cfg.ReloadFunc(ctx); err != nil {
		_, werr := fmt.Fprintf(w, "ERR reload failed: %s\n", err)
		return werr
	}

	_, err := fmt.Fprintln(w, "OK\nconfig reloaded")
	return err
}

func (h *Handler) handleDrain(w io.Writer) error {
	if h.cfg.DrainFunc == nil {
		_, err := fmt.Fprintln(w, "ERR drain not available")
		return err
	}

	h.cfg.DrainFunc()
	_, err := fmt.Fprintln(w, "OK\ndraining")
	return err
}
