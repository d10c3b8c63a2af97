package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

// PlayerRequest carries the arguments of a player action. Only the field
// the action needs is read.
type PlayerRequest struct {
	ID       string  `json:"id,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Position float64 `json:"position,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (h *Handlers) GetPlayer(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.player.Status())
}

// PlayerAction drives the player state machine. Actions that carry
// arguments take a PlayerRequest body; the rest take none.
func (h *Handlers) PlayerAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	var req PlayerRequest
	switch action {
	case "load", "ready", "seek", "advance", "fail":
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	var err error
	switch action {
	case "load":
		if req.ID == "" {
			writeJSONError(w, "id is required", http.StatusBadRequest)
			return
		}
		rec, getErr := h.db.GetRecord(ctx, req.ID)
		if getErr != nil {
			writeError(w, "load", getErr)
			return
		}
		err = h.player.Load(ctx, rec)
	case "ready":
		err = h.player.Ready(ctx, req.Duration)
	case "fail":
		msg := req.Error
		if msg == "" {
			msg = "playback failed"
		}
		err = h.player.Fail(errors.New(msg))
	case "play":
		err = h.player.Play()
	case "pause":
		err = h.player.Pause(ctx)
	case "seek":
		err = h.player.Seek(req.Position)
	case "advance":
		err = h.player.Advance(ctx, req.Position)
	case "stop":
		err = h.player.Stop(ctx)
	default:
		writeJSONError(w, "unknown player action", http.StatusNotFound)
		return
	}

	if err != nil {
		writeError(w, action, err)
		return
	}
	respondJSON(w, http.StatusOK, h.player.Status())
}
