package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"media-library/internal/database"
	"media-library/internal/indexer"
	"media-library/internal/library"
	"media-library/internal/pipeline"
	"media-library/internal/player"
	"media-library/internal/playlist"
)

type Handlers struct {
	db        *database.Database
	indexer   *indexer.Indexer
	pipeline  *pipeline.Pipeline
	library   *library.Library
	player    *player.Player
	startTime time.Time
}

func New(db *database.Database, idx *indexer.Indexer, pipe *pipeline.Pipeline, lib *library.Library, pl *player.Player) *Handlers {
	return &Handlers{
		db:        db,
		indexer:   idx,
		pipeline:  pipe,
		library:   lib,
		player:    pl,
		startTime: time.Now(),
	}
}

// RegisterRoutes installs the health, metrics and API routes on r.
func (h *Handlers) RegisterRoutes(r *mux.Router, metricsEnabled bool) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Records
	api.HandleFunc("/records", h.ListRecords).Methods("GET")
	api.HandleFunc("/records", h.BatchEdit).Methods("PATCH")
	api.HandleFunc("/records/{id}", h.GetRecord).Methods("GET")
	api.HandleFunc("/records/{id}", h.EditRecord).Methods("PATCH")
	api.HandleFunc("/records/{id}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/records/{id}/timeline", h.GetTimeline).Methods("GET")
	api.HandleFunc("/records/{id}/timeline/{frame:[0-9]+}", h.GetTimelineFrame).Methods("GET")
	api.HandleFunc("/records/{id}/regenerate", h.RegenerateRecord).Methods("POST")
	api.HandleFunc("/filter", h.GetFilter).Methods("GET")
	api.HandleFunc("/filter", h.SetFilter).Methods("PUT")
	api.HandleFunc("/tags", h.GetTags).Methods("GET")

	// History
	api.HandleFunc("/history", h.GetHistory).Methods("GET")
	api.HandleFunc("/history/undo", h.Undo).Methods("POST")
	api.HandleFunc("/history/redo", h.Redo).Methods("POST")

	// Jobs
	api.HandleFunc("/status", h.GetStatus).Methods("GET")
	api.HandleFunc("/sync", h.TriggerSync).Methods("POST")
	api.HandleFunc("/process", h.StartProcessing).Methods("POST")
	api.HandleFunc("/process/cancel", h.CancelProcessing).Methods("POST")
	api.HandleFunc("/durations", h.ScanDurations).Methods("POST")

	// Playlists
	api.HandleFunc("/playlists", h.ListPlaylists).Methods("GET")
	api.HandleFunc("/playlists/{name}", h.GetPlaylist).Methods("GET")
	api.HandleFunc("/playlists/{name}", h.PutPlaylist).Methods("PUT")
	api.HandleFunc("/playlists/{name}", h.DeletePlaylist).Methods("DELETE")
	api.HandleFunc("/playlists/{name}/wpl", h.ExportWPL).Methods("GET")
	api.HandleFunc("/playlists/{name}/wpl", h.ImportWPL).Methods("POST")

	// Exports
	api.HandleFunc("/export", h.ExportStore).Methods("GET")
	api.HandleFunc("/export/selection", h.ExportSelection).Methods("GET")

	// Player
	api.HandleFunc("/player", h.GetPlayer).Methods("GET")
	api.HandleFunc("/player/{action}", h.PlayerAction).Methods("POST")
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, library.ErrInvalidPatch),
		errors.Is(err, playlist.ErrInvalidPlaylist),
		errors.Is(err, database.ErrBatchRejected):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrInvalidTransition),
		errors.Is(err, pipeline.ErrAlreadyRunning),
		errors.Is(err, indexer.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrNoPreview):
		return http.StatusNotFound
	case errors.Is(err, database.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
