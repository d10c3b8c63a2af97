package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// GetThumbnail serves the stored primary thumbnail of a record.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	data, err := h.db.GetThumbnail(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "get thumbnail", err)
		return
	}
	writeImage(w, data)
}

// GetTimeline reports how many timeline frames a record has, deriving them
// on first request.
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	frames, err := h.pipeline.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, "get timeline", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "frames": len(frames)})
}

// GetTimelineFrame serves one frame of a record's timeline.
func (h *Handlers) GetTimelineFrame(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["frame"])
	if err != nil {
		writeJSONError(w, "invalid frame index", http.StatusBadRequest)
		return
	}

	frames, err := h.pipeline.Timeline(r.Context(), vars["id"])
	if err != nil {
		writeError(w, "get timeline", err)
		return
	}
	if index >= len(frames) {
		writeJSONError(w, "frame index out of range", http.StatusNotFound)
		return
	}
	writeImage(w, frames[index])
}

// RegenerateRecord re-derives a record's previews synchronously and returns
// the outcome with the updated record.
func (h *Handlers) RegenerateRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	outcome, err := h.pipeline.Regenerate(r.Context(), id)
	if err != nil {
		writeError(w, "regenerate", err)
		return
	}
	rec, err := h.db.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, "regenerate", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "record": rec})
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}
