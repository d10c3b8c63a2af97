package indexer

import (
	"time"

	"media-library/internal/database"
	"media-library/internal/mediatypes"
)

// Plan is the outcome of reconciling one enumeration with the store.
type Plan struct {
	// Upserts are the records to write, new or changed. Unchanged records
	// are never included.
	Upserts []database.Record
	// Regenerate are the records whose previews need to be (re)built.
	Regenerate []database.Record

	Added    int // new paths
	Changed  int // lastModified differs
	Restored int // previously notFound, observed again
	Missing  int // newly flagged notFound
	Repaired int // unchanged but missing a thumbnail
}

// HasChanges reports whether the plan writes anything.
func (p Plan) HasChanges() bool {
	return len(p.Upserts) > 0
}

// Reconcile diffs the observed files against the existing records.
//
// hasThumb reports whether a record already has a primary thumbnail and may
// be nil. newID supplies identifiers for new records. now stamps DateAdded.
func Reconcile(
	observed []ObservedFile,
	existing []database.Record,
	hasThumb func(id string) bool,
	newID func() string,
	now time.Time,
) Plan {
	if hasThumb == nil {
		hasThumb = func(string) bool { return false }
	}

	byPath := make(map[string]database.Record, len(existing))
	for _, rec := range existing {
		byPath[rec.Path] = rec
	}

	var plan Plan
	seen := make(map[string]bool, len(observed))

	for _, f := range observed {
		if seen[f.RelPath] {
			continue
		}
		seen[f.RelPath] = true

		rec, ok := byPath[f.RelPath]
		if !ok {
			created := newRecord(f, newID(), now)
			plan.Upserts = append(plan.Upserts, created)
			plan.Added++
			if mediatypes.IsPlayable(f.RelPath) {
				plan.Regenerate = append(plan.Regenerate, created.Clone())
			}
			continue
		}

		contentChanged := rec.LastModified != f.LastModified
		if contentChanged || rec.NotFound {
			updated := rec.Clone()
			if contentChanged {
				// The file may be a different video now.
				updated.Duration = nil
				plan.Changed++
			} else {
				plan.Restored++
			}
			updated.Size = f.Size
			updated.LastModified = f.LastModified
			updated.NotFound = false

			plan.Upserts = append(plan.Upserts, updated)
			if mediatypes.IsPlayable(f.RelPath) {
				plan.Regenerate = append(plan.Regenerate, updated.Clone())
			}
			continue
		}

		// A failed probe leaves the record unplayable with no thumbnail; it
		// is retried only when the file changes or on explicit request.
		if !hasThumb(rec.ID) && rec.Playable && mediatypes.IsPlayable(f.RelPath) {
			plan.Regenerate = append(plan.Regenerate, rec.Clone())
			plan.Repaired++
		}
	}

	for _, rec := range existing {
		if seen[rec.Path] || rec.NotFound {
			continue
		}
		missing := rec.Clone()
		missing.NotFound = true
		plan.Upserts = append(plan.Upserts, missing)
		plan.Missing++
	}

	return plan
}

func newRecord(f ObservedFile, id string, now time.Time) database.Record {
	return database.Record{
		ID:           id,
		Path:         f.RelPath,
		Size:         f.Size,
		LastModified: f.LastModified,
		Tags:         []string{},
		Hidden:       mediatypes.AutoHidden(f.RelPath),
		DateAdded:    now.UnixMilli(),
		Playable:     mediatypes.IsPlayable(f.RelPath),
	}
}
