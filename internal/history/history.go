package history

import (
	"context"
	"fmt"
	"sync"

	"media-library/internal/database"
	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// DefaultDepth is the number of undo entries kept.
const DefaultDepth = 100

// Store is the part of the persistent store history writes through.
type Store interface {
	GetRecords(ctx context.Context, ids []string) ([]database.Record, error)
	UpsertRecords(ctx context.Context, recs []database.Record) error
}

// Entry is one reversible edit: full snapshots of every affected record.
type Entry struct {
	Snapshots []database.Record
}

// IDs returns the record identifiers in the entry.
func (e Entry) IDs() []string {
	ids := make([]string, len(e.Snapshots))
	for i, r := range e.Snapshots {
		ids[i] = r.ID
	}
	return ids
}

// History holds linear undo and redo stacks.
type History struct {
	store Store
	depth int

	mu   sync.Mutex
	undo []Entry
	redo []Entry

	onInvalidate func(ids []string)
}

// New creates a History. A non-positive depth uses DefaultDepth.
func New(store Store, depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{store: store, depth: depth}
}

// SetOnInvalidate registers the callback told which records an undo or redo
// rewrote.
func (h *History) SetOnInvalidate(fn func(ids []string)) {
	h.mu.Lock()
	h.onInvalidate = fn
	h.mu.Unlock()
}

// Commit pushes the pre-edit snapshots as one entry and clears the redo
// stack. The caller persists the post-edit state afterwards. Empty commits
// are ignored.
func (h *History) Commit(snapshots []database.Record) {
	if len(snapshots) == 0 {
		return
	}
	entry := Entry{Snapshots: cloneAll(snapshots)}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.undo = append(h.undo, entry)
	if over := len(h.undo) - h.depth; over > 0 {
		h.undo = h.undo[over:]
	}
	h.redo = nil
	metrics.HistoryOperationsTotal.WithLabelValues("commit").Inc()
}

// Undo restores the most recent entry. It reports false when there is
// nothing to undo.
func (h *History) Undo(ctx context.Context) (bool, error) {
	return h.swap(ctx, "undo", &h.undo, &h.redo)
}

// Redo reapplies the most recently undone entry. It reports false when there
// is nothing to redo.
func (h *History) Redo(ctx context.Context) (bool, error) {
	return h.swap(ctx, "redo", &h.redo, &h.undo)
}

// swap pops from src, persists it, and pushes the state it replaced onto
// dst. When the write fails the popped entry goes back onto src.
func (h *History) swap(ctx context.Context, op string, src, dst *[]Entry) (bool, error) {
	h.mu.Lock()
	if len(*src) == 0 {
		h.mu.Unlock()
		return false, nil
	}
	entry := (*src)[len(*src)-1]
	*src = (*src)[:len(*src)-1]
	h.mu.Unlock()

	ids := entry.IDs()
	current, err := h.store.GetRecords(ctx, ids)
	if err == nil {
		err = h.store.UpsertRecords(ctx, entry.Snapshots)
	}
	if err != nil {
		h.mu.Lock()
		*src = append(*src, entry)
		h.mu.Unlock()
		metrics.HistoryOperationsTotal.WithLabelValues(op + "_failed").Inc()
		return false, fmt.Errorf("%s failed: %w", op, err)
	}

	h.mu.Lock()
	*dst = append(*dst, Entry{Snapshots: current})
	notify := h.onInvalidate
	h.mu.Unlock()

	metrics.HistoryOperationsTotal.WithLabelValues(op).Inc()
	logging.Debug("History %s restored %d records", op, len(entry.Snapshots))
	if notify != nil {
		notify(ids)
	}
	return true, nil
}

// CanUndo reports whether an undo entry exists.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether a redo entry exists.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Depths returns the sizes of the undo and redo stacks.
func (h *History) Depths() (undo, redo int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo), len(h.redo)
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	h.undo = nil
	h.redo = nil
	h.mu.Unlock()
}

func cloneAll(recs []database.Record) []database.Record {
	out := make([]database.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
