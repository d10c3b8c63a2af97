package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"media-library/internal/indexer"
	"media-library/internal/logging"
	"media-library/internal/pipeline"
)

// StatusResponse reports background job progress.
type StatusResponse struct {
	Sync          indexer.SyncProgress `json:"sync"`
	LastSynced    *time.Time           `json:"lastSynced,omitempty"`
	LastSyncError string               `json:"lastSyncError,omitempty"`
	Pipeline      pipeline.Progress    `json:"pipeline"`
}

func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Sync:     h.indexer.GetProgress(),
		Pipeline: h.pipeline.GetProgress(),
	}
	if t := h.indexer.LastSyncTime(); !t.IsZero() {
		resp.LastSynced = &t
	}
	if err := h.indexer.LastError(); err != nil {
		resp.LastSyncError = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// TriggerSync starts a sync pass in the background. Regeneration of the
// records it flags is started by the sync completion callback.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.indexer.IsSyncing() {
		writeJSONError(w, indexer.ErrSyncInProgress.Error(), http.StatusConflict)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.indexer.Sync(ctx); err != nil && !errors.Is(err, indexer.ErrSyncInProgress) {
			logging.Error("Sync failed: %v", err)
		}
	}()
	writeJSONStatus(w, http.StatusAccepted, "started")
}

// StartProcessing derives thumbnails in the background for present records
// that lack one, or for all present records with ?all=true.
func (h *Handlers) StartProcessing(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	if h.pipeline.IsRunning() {
		writeJSONError(w, pipeline.ErrAlreadyRunning.Error(), http.StatusConflict)
		return
	}

	recs, err := h.db.AllRecords(r.Context())
	if err != nil {
		writeError(w, "start processing", err)
		return
	}
	thumbs, err := h.db.ThumbnailIDs(r.Context())
	if err != nil {
		writeError(w, "start processing", err)
		return
	}
	pending := pipeline.Pending(recs, thumbs, all)

	ctx := context.WithoutCancel(r.Context())
	go func() {
		sum, err := h.pipeline.Run(ctx, pending)
		if err != nil {
			logging.Error("Processing failed: %v", err)
			return
		}
		logging.Info("Processing finished: %d generated, %d failed, %d inaccessible",
			sum.Generated, sum.Failed, sum.Inaccessible)
	}()
	respondJSON(w, http.StatusAccepted, map[string]any{"status": "started", "total": len(pending)})
}

// ScanDurations probes unknown durations in the background.
func (h *Handlers) ScanDurations(w http.ResponseWriter, r *http.Request) {
	if h.pipeline.IsRunning() {
		writeJSONError(w, pipeline.ErrAlreadyRunning.Error(), http.StatusConflict)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		sum, err := h.pipeline.ScanDurations(ctx)
		if err != nil {
			logging.Error("Duration scan failed: %v", err)
			return
		}
		logging.Info("Duration scan finished: %d of %d probed", sum.Generated, sum.Processed)
	}()
	writeJSONStatus(w, http.StatusAccepted, "started")
}

// CancelProcessing asks the running batch to stop after the current record.
func (h *Handlers) CancelProcessing(w http.ResponseWriter, _ *http.Request) {
	if !h.pipeline.IsRunning() {
		writeJSONStatus(w, http.StatusOK, "idle")
		return
	}
	h.pipeline.Cancel()
	writeJSONStatus(w, http.StatusAccepted, "canceling")
}
