package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"stagehall/services/syncer"
)

type syncService interface {
	FullRebuild(ctx context.Context, opts syncer.FullRebuildOptions) (syncer.Result, error)
	SyncProductions(ctx context.Context) (syncer.Result, error)
	SyncEvents(ctx context.Context) (syncer.Result, error)
}

var _ syncService = (*syncer.Service)(nil)

// SyncHandler exposes the sync trigger endpoints: the manual admin rebuild
// and the two scheduler-invoked incremental syncs.
type SyncHandler struct {
	Syncer syncService
}

func NewSyncHandler(svc syncService) *SyncHandler {
	return &SyncHandler{Syncer: svc}
}

type rebuildRequest struct {
	VerifyPhotos bool `json:"verifyPhotos"`
}

// Rebuild runs the full production+event rebuild. Reached only through the
// session and admin middleware, so the authorization gate has already
// passed by the time any upstream fetch starts. The body is optional.
func (h *SyncHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Syncer.FullRebuild(r.Context(), syncer.FullRebuildOptions{VerifyPhotos: req.VerifyPhotos})
	if err != nil {
		h.respondSyncError(w, "rebuild", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CronSyncProductions runs the incremental production sync.
func (h *SyncHandler) CronSyncProductions(w http.ResponseWriter, r *http.Request) {
	result, err := h.Syncer.SyncProductions(r.Context())
	if err != nil {
		h.respondSyncError(w, "productions", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CronSyncEvents runs the incremental event sync.
func (h *SyncHandler) CronSyncEvents(w http.ResponseWriter, r *http.Request) {
	result, err := h.Syncer.SyncEvents(r.Context())
	if err != nil {
		h.respondSyncError(w, "events", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *SyncHandler) respondSyncError(w http.ResponseWriter, flow string, err error) {
	log.Printf("[sync] %s failed: %v", flow, err)
	status := http.StatusBadGateway
	if errors.Is(err, syncer.ErrEmptyUpstream) {
		status = http.StatusConflict
	}
	respondJSON(w, status, map[string]any{
		"status": "failed",
		"error":  err.Error(),
	})
}
