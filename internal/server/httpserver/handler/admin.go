// Package handler provides HTTP request handlers for CredGate.
//
// This file contains the operational admin endpoints: status summary,
// GC trigger, backup snapshots, and configuration reload.
package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/credgate/internal/core/service"
	"github.com/yndnr/credgate/internal/storage"
	"github.com/yndnr/credgate/internal/storage/snapshot"
)

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	sessionCount := 0
	if h.store != nil {
		sessionCount = h.store.Count(r.Context())
	}

	userCount := 0
	if resp, err := h.directorySvc.ListUsers(r.Context(), &service.ListUsersRequest{}); err == nil {
		userCount = len(resp.Users)
	}

	h.writeJSON(w, r, http.StatusOK, StatusSummaryResponse{
		Status:         "running",
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		StorageBackend: h.backend,
		SessionCount:   sessionCount,
		UserCount:      userCount,
		Time:           time.Now().UTC(),
	})
}

// handleGCTrigger handles POST /admin/v1/gc/trigger.
func (h *Handler) handleGCTrigger(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	// Trigger garbage collection
	count, err := h.sessionSvc.GC(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.SessionExpired(count)
	h.logger.Info("gc triggered",
		"removed", count,
		"triggered_by", id.User.Username)

	h.writeJSON(w, r, http.StatusOK, GCTriggerResponse{
		RemovedCount: count,
	})
}

// handleCreateSnapshot handles POST /admin/v1/backups/snapshots.
//
// Only engines that implement on-demand snapshots serve this; the
// others answer 503 rather than pretending a backup happened.
func (h *Handler) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	snapshotter, ok := h.store.(storage.Snapshotter)
	if !ok {
		h.writeError(w, r, http.StatusServiceUnavailable, "CG-SYS-5030", "storage backend does not support snapshots", nil)
		return
	}

	info, err := snapshotter.TriggerSnapshot(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("snapshot created",
		"snapshot_id", info.ID,
		"sessions", info.SessionCount,
		"triggered_by", id.User.Username)

	h.writeJSON(w, r, http.StatusCreated, snapshotToResponse(info))
}

// handleListSnapshots handles GET /admin/v1/backups/snapshots.
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	snapshotter, ok := h.store.(storage.Snapshotter)
	if !ok {
		h.writeError(w, r, http.StatusServiceUnavailable, "CG-SYS-5030", "storage backend does not support snapshots", nil)
		return
	}

	infos, err := snapshotter.ListSnapshots()
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	snapshots := make([]SnapshotResponse, len(infos))
	for i, info := range infos {
		snapshots[i] = snapshotToResponse(info)
	}

	h.writeJSON(w, r, http.StatusOK, ListSnapshotsResponse{
		Snapshots: snapshots,
	})
}

// handleConfigReload handles POST /admin/v1/config/reload.
func (h *Handler) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	id := h.requireAdmin(w, r)
	if id == nil {
		return
	}

	if h.reload == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "CG-SYS-5030", "config reload not available", nil)
		return
	}

	if err := h.reload(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("config reloaded", "triggered_by", id.User.Username)
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// snapshotToResponse converts snapshot metadata to a SnapshotResponse.
func snapshotToResponse(info *snapshot.Info) SnapshotResponse {
	return SnapshotResponse{
		ID:           info.ID,
		CreatedAt:    time.UnixMilli(info.CreatedAt),
		SessionCount: info.SessionCount,
		SizeBytes:    info.Size,
		Path:         info.Path,
		Checksum:     info.Checksum,
	}
}
