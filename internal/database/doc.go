// Package database provides the SQLite-backed persistent store for the
// media library.
//
// It keeps three independent collections keyed by record identifier:
//   - records: library metadata, with a unique index on relative path
//   - thumbnails: one primary thumbnail per record
//   - timeline_thumbnails: the ordered scrub-preview frames of a record
//
// Metadata and binary payloads are written independently, so editing a
// record never rewrites its thumbnails. Named playlists and a small metadata
// table (schema version) live alongside.
//
// The schema is versioned and evolves additively only: columns introduced
// after the first version are added as nullable columns on open, and
// decodeRecord fills in their defaults once at load time.
//
// A Database is an explicitly opened, owned instance. Callers pass it to the
// components that need it and Close it when done.
package database
