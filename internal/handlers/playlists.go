package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"media-library/internal/database"
)

// ListPlaylists returns all stored playlists
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.library.Playlists(r.Context())
	if err != nil {
		writeError(w, "list playlists", err)
		return
	}
	if playlists == nil {
		playlists = []database.Playlist{}
	}
	respondJSON(w, http.StatusOK, playlists)
}

// GetPlaylist returns one playlist by name
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	pl, err := h.library.Playlist(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, "get playlist", err)
		return
	}
	respondJSON(w, http.StatusOK, pl)
}

// PutPlaylist stores the JSON array of record IDs in the body under the
// given name. Unknown IDs are dropped; a malformed body stores nothing.
func (h *Handlers) PutPlaylist(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	kept, dropped, err := h.library.ImportPlaylist(r.Context(), name, data)
	if err != nil {
		writeError(w, "save playlist", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"name": name, "kept": kept, "dropped": dropped})
}

func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.library.DeletePlaylist(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, "delete playlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportWPL renders a playlist as a Windows Media Player playlist.
func (h *Handlers) ExportWPL(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var buf bytes.Buffer
	if err := h.library.ExportWPL(r.Context(), name, &buf); err != nil {
		writeError(w, "export playlist", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.ms-wpl")
	w.Header().Set("Content-Disposition", `attachment; filename="`+safeFilename(name)+`.wpl"`)
	_, _ = w.Write(buf.Bytes())
}

// ImportWPL stores the WPL document in the body under the given name,
// mapping its media paths to records.
func (h *Handlers) ImportWPL(w http.ResponseWriter, r *http.Request) {
	name, unresolved, err := h.library.ImportWPL(r.Context(), mux.Vars(r)["name"], io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "import playlist", err)
		return
	}
	if unresolved == nil {
		unresolved = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"name": name, "unresolved": unresolved})
}

// ExportStore returns the full store export without binary payloads.
func (h *Handlers) ExportStore(w http.ResponseWriter, r *http.Request) {
	doc, err := h.db.Export(r.Context())
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="library-export.json"`)
	respondJSON(w, http.StatusOK, doc)
}

// ExportSelection returns the reduced form of every record matching the
// current filter.
func (h *Handlers) ExportSelection(w http.ResponseWriter, r *http.Request) {
	entries, err := h.library.Selection(r.Context())
	if err != nil {
		writeError(w, "export selection", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="selection.json"`)
	respondJSON(w, http.StatusOK, entries)
}

// safeFilename drops characters that would break a Content-Disposition value.
func safeFilename(name string) string {
	b := []byte(name)
	out := b[:0]
	for _, c := range b {
		if c >= 0x20 && c != '"' && c != '\\' && c != '/' {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "playlist"
	}
	return string(out)
}
