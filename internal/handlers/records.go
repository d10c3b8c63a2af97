package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-library/internal/database"
	"media-library/internal/library"
)

// RecordsResponse is one page of the visible set.
type RecordsResponse struct {
	Records  []database.Record `json:"records"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
}

// ListRecords returns the visible set under the current filter. The page
// and pageSize query parameters override the filter's paging for this
// request only.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	f := h.library.Filter()
	page, pageSize := f.Page, f.PageSize
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSONError(w, "page must be a positive integer", http.StatusBadRequest)
			return
		}
		page = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, "pageSize must be a non-negative integer", http.StatusBadRequest)
			return
		}
		pageSize = n
	}

	recs, total, err := h.library.VisiblePage(r.Context(), page, pageSize)
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	respondJSON(w, http.StatusOK, RecordsResponse{
		Records:  recs,
		Total:    total,
		Page:     max(page, 1),
		PageSize: pageSize,
	})
}

// GetRecord returns one record by ID.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.db.GetRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// EditRecord applies a patch to one record.
func (h *Handlers) EditRecord(w http.ResponseWriter, r *http.Request) {
	var patch library.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec, err := h.library.Edit(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, "edit record", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// BatchEdit applies a patch to every record matching the current filter.
func (h *Handlers) BatchEdit(w http.ResponseWriter, r *http.Request) {
	var patch library.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	changed, err := h.library.BatchEdit(r.Context(), patch)
	if err != nil {
		writeError(w, "batch edit", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (h *Handlers) GetFilter(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.library.Filter())
}

// SetFilter replaces the filter. This clears the preview cache.
func (h *Handlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	var f library.Filter
	if err := decodeJSON(r, &f); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch f.SortField {
	case "", library.SortByPath, library.SortByDate, library.SortBySize,
		library.SortByAdded, library.SortByRating, library.SortByOpened:
	default:
		writeJSONError(w, "unknown sort field", http.StatusBadRequest)
		return
	}
	if f.SortOrder != "" && f.SortOrder != library.SortAsc && f.SortOrder != library.SortDesc {
		writeJSONError(w, "unknown sort order", http.StatusBadRequest)
		return
	}
	if f.Page < 0 || f.PageSize < 0 || f.MinRating < 0 {
		writeJSONError(w, "paging and rating must not be negative", http.StatusBadRequest)
		return
	}
	h.library.SetFilter(f)
	respondJSON(w, http.StatusOK, f)
}

// GetTags returns every tag on undeleted records with its use count.
func (h *Handlers) GetTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.library.Tags(r.Context())
	if err != nil {
		writeError(w, "list tags", err)
		return
	}
	if tags == nil {
		tags = []library.TagCount{}
	}
	respondJSON(w, http.StatusOK, tags)
}

// HistoryResponse reports the depth of both history stacks.
type HistoryResponse struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
	Undo    int  `json:"undo"`
	Redo    int  `json:"redo"`
}

func (h *Handlers) historyState() HistoryResponse {
	hist := h.library.History()
	undo, redo := hist.Depths()
	return HistoryResponse{CanUndo: undo > 0, CanRedo: redo > 0, Undo: undo, Redo: redo}
}

func (h *Handlers) GetHistory(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.historyState())
}

// Undo reverts the most recent edit. An empty stack is not an error.
func (h *Handlers) Undo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.library.Undo(r.Context()); err != nil {
		writeError(w, "undo", err)
		return
	}
	respondJSON(w, http.StatusOK, h.historyState())
}

// Redo reapplies the most recently undone edit.
func (h *Handlers) Redo(w http.ResponseWriter, r *http.Request) {
	if _, err := h.library.Redo(r.Context()); err != nil {
		writeError(w, "redo", err)
		return
	}
	respondJSON(w, http.StatusOK, h.historyState())
}
