// Package indexer reconciles the files in the library folder with the
// records in the store.
//
// A sync pass has three steps:
//   - Enumerate the library root (FSEnumerator walks directories in parallel)
//   - Reconcile the observed files against existing records, producing a Plan
//   - Write the Plan's upserts to the store in one atomic batch
//
// Reconcile is a pure function. It never deletes records: files that
// disappear are flagged notFound and keep every user-entered field, so a
// file that comes back is matched by path and restored intact. A renamed file
// is a new path and therefore a new record.
//
// The Indexer adds run-state tracking on top (one sync at a time, progress,
// last sync time) and an optional polling loop that triggers a sync when the
// top of the library tree changes.
package indexer
