package library

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"media-library/internal/database"
	"media-library/internal/history"
	"media-library/internal/logging"
	"media-library/internal/previewcache"
)

// Library applies user edits to the store.
type Library struct {
	db      *database.Database
	history *history.History
	cache   *previewcache.Cache

	mu     sync.RWMutex
	filter Filter
}

// New creates a Library. Undo and redo invalidate the cached previews of the
// records they rewrite.
func New(db *database.Database, hist *history.History, cache *previewcache.Cache) *Library {
	l := &Library{db: db, history: hist, cache: cache}
	hist.SetOnInvalidate(func(ids []string) {
		cache.Invalidate(ids...)
	})
	return l
}

// History returns the edit history.
func (l *Library) History() *history.History {
	return l.history
}

// Filter returns the current filter.
func (l *Library) Filter() Filter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filter
}

// SetFilter replaces the filter and clears the preview cache.
func (l *Library) SetFilter(f Filter) {
	l.mu.Lock()
	l.filter = f
	l.mu.Unlock()

	l.cache.Clear()
	logging.Debug("Filter changed: %+v", f)
}

// Visible returns the current page of the visible set and the number of
// matching records.
func (l *Library) Visible(ctx context.Context) ([]database.Record, int, error) {
	return l.apply(ctx, l.Filter())
}

// VisiblePage is Visible with the filter's paging replaced. The stored
// filter is unchanged, so the cache is kept.
func (l *Library) VisiblePage(ctx context.Context, page, pageSize int) ([]database.Record, int, error) {
	f := l.Filter()
	f.Page, f.PageSize = page, pageSize
	return l.apply(ctx, f)
}

// matching returns every record the filter matches, ignoring paging.
func (l *Library) matching(ctx context.Context) ([]database.Record, error) {
	f := l.Filter()
	f.Page, f.PageSize = 0, 0
	recs, _, err := l.apply(ctx, f)
	return recs, err
}

func (l *Library) apply(ctx context.Context, f Filter) ([]database.Record, int, error) {
	all, err := l.db.AllRecords(ctx)
	if err != nil {
		return nil, 0, err
	}
	recs, total := f.Apply(all)
	return recs, total, nil
}

// Edit applies patch to one record as a single undoable entry.
func (l *Library) Edit(ctx context.Context, id string, patch Patch) (database.Record, error) {
	if err := patch.Validate(); err != nil {
		return database.Record{}, err
	}
	rec, err := l.db.GetRecord(ctx, id)
	if err != nil {
		return database.Record{}, err
	}

	changed, err := l.commit(ctx, []database.Record{rec}, patch)
	if err != nil {
		return database.Record{}, err
	}
	if len(changed) == 0 {
		return rec, nil
	}
	return changed[0], nil
}

// BatchEdit applies patch to every record in the visible set, ignoring
// paging, as one undoable entry. It returns the number of records changed.
func (l *Library) BatchEdit(ctx context.Context, patch Patch) (int, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	recs, err := l.matching(ctx)
	if err != nil {
		return 0, err
	}
	changed, err := l.commit(ctx, recs, patch)
	if err != nil {
		return 0, err
	}
	logging.Info("Batch edit changed %d of %d visible records", len(changed), len(recs))
	return len(changed), nil
}

// commit persists the patched records that actually change, then records
// their prior state in the history.
func (l *Library) commit(ctx context.Context, recs []database.Record, patch Patch) ([]database.Record, error) {
	var before, after []database.Record
	for _, r := range recs {
		next := patch.Apply(r)
		if next.Equal(r) {
			continue
		}
		before = append(before, r)
		after = append(after, next)
	}
	if len(after) == 0 {
		return nil, nil
	}

	if err := l.db.UpsertRecords(ctx, after); err != nil {
		return nil, err
	}
	l.history.Commit(before)
	return after, nil
}

// Undo reverts the most recent edit.
func (l *Library) Undo(ctx context.Context) (bool, error) {
	return l.history.Undo(ctx)
}

// Redo reapplies the most recently undone edit.
func (l *Library) Redo(ctx context.Context) (bool, error) {
	return l.history.Redo(ctx)
}

// Opened increments the open counter of a record. Counting is not an edit
// and is not recorded in the history.
func (l *Library) Opened(ctx context.Context, id string) error {
	rec, err := l.db.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	rec.TimesOpened++
	return l.db.UpsertRecord(ctx, rec)
}

// PositionSaved stores a resume position reported by playback. Like the
// open counter it bypasses the history; the seen rule still applies.
func (l *Library) PositionSaved(ctx context.Context, id string, position float64) error {
	patch := Patch{SavedPosition: &position}
	if err := patch.Validate(); err != nil {
		return err
	}
	rec, err := l.db.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	next := patch.Apply(rec)
	if next.Equal(rec) {
		return nil
	}
	return l.db.UpsertRecord(ctx, next)
}

// TagCount is a tag and the number of records carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Tags returns every tag in use among records that are not deleted, by
// name.
func (l *Library) Tags(ctx context.Context) ([]TagCount, error) {
	all, err := l.db.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, r := range all {
		if r.Deleted {
			continue
		}
		for _, t := range r.Tags {
			counts[t]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagCount{Tag: t, Count: n})
	}
	slices.SortFunc(out, func(a, b TagCount) int {
		return cmp.Compare(a.Tag, b.Tag)
	})
	return out, nil
}

// Selection returns the portable summary of the visible set, ignoring
// paging.
func (l *Library) Selection(ctx context.Context) ([]database.SelectionEntry, error) {
	recs, err := l.matching(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load visible records: %w", err)
	}
	return database.Selection(recs), nil
}
