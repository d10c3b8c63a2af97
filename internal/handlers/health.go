package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	Syncing       bool   `json:"syncing"`
	Processing    bool   `json:"processing"`
	LastSynced    string `json:"lastSynced,omitempty"`
	LastSyncError string `json:"lastSyncError,omitempty"`
	StoreError    string `json:"storeError,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalRecords int `json:"totalRecords"`
	Missing      int `json:"missing"`
	Thumbnails   int `json:"thumbnails"`
}

// HealthCheck returns the health status of the service. The service is
// ready once the store answers and one sync pass has completed.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	lastSync := h.indexer.LastSyncTime()

	response := HealthResponse{
		Ready:        !lastSync.IsZero(),
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Syncing:      h.indexer.IsSyncing(),
		Processing:   h.pipeline.IsRunning(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		Status:       statusHealthy,
	}

	if !lastSync.IsZero() {
		response.LastSynced = lastSync.Format(time.RFC3339)
	}
	if !response.Ready {
		response.Status = statusStarting
	}
	if err := h.indexer.LastError(); err != nil {
		response.LastSyncError = err.Error()
		response.Status = statusDegraded
	}

	if stats, err := h.db.LibraryStats(r.Context()); err != nil {
		response.StoreError = err.Error()
		response.Ready = false
		response.Status = statusDegraded
	} else {
		response.TotalRecords = stats.Total
		response.Missing = stats.Missing
		response.Thumbnails = stats.Thumbnails
	}

	// Return 503 only if not ready at all
	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the store answers and a sync pass
// has completed.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil || h.indexer.LastSyncTime().IsZero() {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}
